//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcSoil machine.ADC
	uart    = machine.UART0

	relayOn bool

	// Probe averaging - running sum and count
	soilSum   uint32
	soilCount int

	// Timing
	lastADCRead time.Time

	// Serial buffer for reading commands
	serialBuffer [4]byte
	serialPos    int
)

func main() {
	// Relay starts off until the host asks for water
	PIN_RELAY.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_RELAY.Low()

	PIN_SOIL_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcSoil = machine.ADC{Pin: PIN_SOIL_ADC}
	adcSoil.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	print("# irrigo board ready\n")

	lastADCRead = time.Now()

	for {
		now := time.Now()

		processSerial()

		if now.Sub(lastADCRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			soilSum += uint32(adcSoil.Get() >> ADC_SHIFT)
			soilCount++
			lastADCRead = now
		}

		if soilCount >= NUM_SAMPLES {
			outputReading()
			soilSum = 0
			soilCount = 0
		}

		time.Sleep(500 * time.Microsecond)
	}
}

func outputReading() {
	soilAvg := uint16(soilSum / uint32(soilCount))

	// Output format: "moisture_raw,temp_c,humidity_pct,relay\n"
	// TODO: read a DHT22 through tinygo.org/x/drivers/dht instead of reporting nan.
	print(soilAvg)
	print(",nan,nan,")
	if relayOn {
		print("1")
	} else {
		print("0")
	}
	print("\n")
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 1 {
				setRelay(serialBuffer[0] == '1')
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		// Only accept a single '0' or '1' per line
		if (data == '0' || data == '1') && serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			serialPos = len(serialBuffer)
		}
	}
}

func setRelay(on bool) {
	relayOn = on
	if on {
		PIN_RELAY.High()
	} else {
		PIN_RELAY.Low()
	}
}
