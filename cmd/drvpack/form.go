package main

import (
	"fmt"

	"github.com/maxvdec/avery-toolchain/internal/driver"
	"github.com/rivo/tview"
)

// runForm collects driver package metadata through an interactive
// terminal form, replacing the line-by-line stdin prompts the original
// packaging tool used.
func runForm() (driver.Options, error) {
	app := tview.NewApplication()
	opts := driver.Options{}
	var subsystemChoice string
	var manufacturerText, deviceText, versionText string
	submitted := false

	form := tview.NewForm().
		AddInputField("Name", "", 32, nil, func(text string) { opts.Name = text }).
		AddInputField("Manufacturer ID (decimal)", "0", 16, nil, func(text string) { manufacturerText = text }).
		AddInputField("Device ID (decimal)", "0", 16, nil, func(text string) { deviceText = text }).
		AddDropDown("Subsystem", []string{"storage", "network", "display", "input", "audio", "peripheral"}, 0,
			func(option string, index int) { subsystemChoice = option }).
		AddInputField("Description", "", 48, nil, func(text string) { opts.Description = text }).
		AddInputField("Version (MAJOR.MINOR.PATCH)", "1.0.0", 16, nil, func(text string) { versionText = text })

	form.AddButton("Package", func() {
		submitted = true
		app.Stop()
	})
	form.AddButton("Cancel", func() {
		app.Stop()
	})
	form.SetBorder(true).SetTitle(" Driver package metadata ").SetTitleAlign(tview.AlignLeft)

	if err := app.SetRoot(form, true).SetFocus(form).Run(); err != nil {
		return driver.Options{}, fmt.Errorf("running metadata form: %w", err)
	}

	if !submitted {
		return driver.Options{}, fmt.Errorf("driver packaging cancelled")
	}

	var manufacturer, device int
	fmt.Sscanf(manufacturerText, "%d", &manufacturer)
	fmt.Sscanf(deviceText, "%d", &device)
	opts.Manufacturer = uint16(manufacturer)
	opts.Device = uint16(device)
	opts.Subsystem = subsystemNames[subsystemChoice]

	if versionText == "" {
		versionText = "1.0.0"
	}
	major, minor, patch, err := parseVersion(versionText)
	if err != nil {
		return driver.Options{}, err
	}
	opts.Version = driver.Version{Major: major, Minor: minor, Patch: patch}

	return opts, nil
}
