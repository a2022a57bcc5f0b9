package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/irrigo/pkg/board"
	"github.com/itohio/irrigo/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createCalibrationTab(state),
		createDecisionTab(state),
		createRelayTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and persists the configuration, reporting failures in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	if state.station != nil {
		dialog.ShowInformation("Settings", "Reconnect to apply the new settings.", state.window)
	}
	return true
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := board.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	staleEntry := widget.NewEntry()
	staleEntry.SetText(state.cfg.Serial.StaleAfter.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Stale after", Widget: staleEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				state.cfg.Serial.Port = selectedPort
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Serial.BaudRate = baud
			}
			if d, err := time.ParseDuration(staleEntry.Text); err == nil {
				state.cfg.Serial.StaleAfter = d
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Serial", form)
}

// createCalibrationTab creates the probe calibration tab.
func createCalibrationTab(state *appState) *container.TabItem {
	dryEntry := widget.NewEntry()
	dryEntry.SetText(strconv.Itoa(state.cfg.Calibration.Dry))

	wetEntry := widget.NewEntry()
	wetEntry.SetText(strconv.Itoa(state.cfg.Calibration.Wet))

	tempEntry := widget.NewEntry()
	tempEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Fallback.TemperatureC))

	humEntry := widget.NewEntry()
	humEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Fallback.HumidityPct))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Dry reading (ADC)", Widget: dryEntry},
			{Text: "Wet reading (ADC)", Widget: wetEntry},
			{Text: "Fallback temperature (C)", Widget: tempEntry},
			{Text: "Fallback humidity (%)", Widget: humEntry},
		},
		OnSubmit: func() {
			if dry, err := strconv.Atoi(dryEntry.Text); err == nil {
				state.cfg.Calibration.Dry = dry
			}
			if wet, err := strconv.Atoi(wetEntry.Text); err == nil {
				state.cfg.Calibration.Wet = wet
			}
			if t, err := strconv.ParseFloat(tempEntry.Text, 64); err == nil {
				state.cfg.Fallback.TemperatureC = t
			}
			if h, err := strconv.ParseFloat(humEntry.Text, 64); err == nil {
				state.cfg.Fallback.HumidityPct = h
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createDecisionTab creates the irrigation decision tab.
func createDecisionTab(state *appState) *container.TabItem {
	modeSelect := widget.NewSelect([]string{config.ModeThreshold, config.ModeInference}, nil)
	modeSelect.SetSelected(state.cfg.Decision.Mode)

	moistureEntry := widget.NewEntry()
	moistureEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Decision.MoistureThreshold))

	probEntry := widget.NewEntry()
	probEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Decision.ProbabilityThreshold))

	modelEntry := widget.NewEntry()
	modelEntry.SetText(state.cfg.Inference.ModelPath)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Mode", Widget: modeSelect},
			{Text: "Moisture threshold (%)", Widget: moistureEntry},
			{Text: "Probability threshold", Widget: probEntry},
			{Text: "Model file", Widget: modelEntry},
		},
		OnSubmit: func() {
			if modeSelect.Selected != "" {
				state.cfg.Decision.Mode = modeSelect.Selected
				state.modeSelect.SetSelected(modeSelect.Selected)
			}
			if m, err := strconv.ParseFloat(moistureEntry.Text, 64); err == nil {
				state.cfg.Decision.MoistureThreshold = m
			}
			if p, err := strconv.ParseFloat(probEntry.Text, 64); err == nil {
				state.cfg.Decision.ProbabilityThreshold = p
			}
			if modelEntry.Text != "" {
				state.cfg.Inference.ModelPath = modelEntry.Text
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Decision", form)
}

// createRelayTab creates the relay and loop timing tab.
func createRelayTab(state *appState) *container.TabItem {
	dwellEntry := widget.NewEntry()
	dwellEntry.SetText(state.cfg.Relay.MinDwell.String())

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Loop.Period.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Minimum dwell", Widget: dwellEntry},
			{Text: "Loop period", Widget: periodEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(dwellEntry.Text); err == nil {
				state.cfg.Relay.MinDwell = d
			}
			if p, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Loop.Period = p
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Relay", form)
}

// createMockTab creates the simulated board tab.
func createMockTab(state *appState) *container.TabItem {
	startEntry := widget.NewEntry()
	startEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.StartMoisture))

	dryEntry := widget.NewEntry()
	dryEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.DryRate))

	pumpEntry := widget.NewEntry()
	pumpEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.PumpRate))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Noise))

	tempEntry := widget.NewEntry()
	tempEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.BaseTemperature))

	dropoutEntry := widget.NewEntry()
	dropoutEntry.SetText(strconv.Itoa(state.cfg.Mock.DropoutEvery))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Start moisture (%)", Widget: startEntry},
			{Text: "Drying (%/h)", Widget: dryEntry},
			{Text: "Pumping (%/min)", Widget: pumpEntry},
			{Text: "Probe noise (ADC)", Widget: noiseEntry},
			{Text: "Base temperature (C)", Widget: tempEntry},
			{Text: "Climate dropout every", Widget: dropoutEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(startEntry.Text, 64); err == nil {
				state.cfg.Mock.StartMoisture = v
			}
			if v, err := strconv.ParseFloat(dryEntry.Text, 64); err == nil {
				state.cfg.Mock.DryRate = v
			}
			if v, err := strconv.ParseFloat(pumpEntry.Text, 64); err == nil {
				state.cfg.Mock.PumpRate = v
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				state.cfg.Mock.Noise = v
			}
			if v, err := strconv.ParseFloat(tempEntry.Text, 64); err == nil {
				state.cfg.Mock.BaseTemperature = v
			}
			if v, err := strconv.Atoi(dropoutEntry.Text); err == nil {
				state.cfg.Mock.DropoutEvery = v
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}
