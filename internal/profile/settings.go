package profile

// CoolerBoost carries the byte values written to the boost register.
// The canonical pair is 0/128 but both come from configuration, which
// is why the decoder treats any byte >= 128 as engaged.
type CoolerBoost struct {
	AddressProfile string
	Off            byte
	On             byte
}

// USBBacklight carries the byte values for the three backlight levels.
type USBBacklight struct {
	AddressProfile string
	Off            byte
	Half           byte
	Full           byte
}

func buildCoolerBoost(data map[string]string) (CoolerBoost, error) {
	ap, ok := data[keyAddressProfile]
	if !ok {
		return CoolerBoost{}, missingKey(SectionCoolerBoost, keyAddressProfile)
	}
	cb := CoolerBoost{AddressProfile: ap}
	var err error
	if cb.Off, err = parseByte(SectionCoolerBoost, data, "cooler_boost_off"); err != nil {
		return CoolerBoost{}, err
	}
	if cb.On, err = parseByte(SectionCoolerBoost, data, "cooler_boost_on"); err != nil {
		return CoolerBoost{}, err
	}
	return cb, nil
}

func buildUSBBacklight(data map[string]string) (USBBacklight, error) {
	ap, ok := data[keyAddressProfile]
	if !ok {
		return USBBacklight{}, missingKey(SectionUSBBacklight, keyAddressProfile)
	}
	ub := USBBacklight{AddressProfile: ap}
	var err error
	if ub.Off, err = parseByte(SectionUSBBacklight, data, "usb_backlight_off"); err != nil {
		return USBBacklight{}, err
	}
	if ub.Half, err = parseByte(SectionUSBBacklight, data, "usb_backlight_half"); err != nil {
		return USBBacklight{}, err
	}
	if ub.Full, err = parseByte(SectionUSBBacklight, data, "usb_backlight_full"); err != nil {
		return USBBacklight{}, err
	}
	return ub, nil
}
