package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 10 // Probe read interval in milliseconds
	NUM_SAMPLES        = 25 // Number of probe reads averaged into one report

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)
	ADC_SHIFT        = 4    // machine.ADC.Get scales readings to 16 bits

	// Relay pin (drives the pump relay coil through a transistor)
	PIN_RELAY = machine.D7

	// Capacitive soil probe
	PIN_SOIL_ADC = machine.A1

	// Serial configuration
	// Line format: "moisture_raw,temp_c,humidity_pct,relay\n", e.g. "4095,nan,nan,1\n"
	// is at most ~24 bytes. 4 reports/sec need ~100 bytes/sec, far below 115200 baud.
	UART_BAUD_RATE = 115200
)
