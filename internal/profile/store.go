package profile

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// DefaultPath is the configuration file the controller shares with
// isw-style tools.
const DefaultPath = "/etc/isw.conf"

// Reserved section names. Every other section in the file is a user
// profile.
const (
	SectionAddressDefault = "MSI_ADDRESS_DEFAULT"
	SectionCoolerBoost    = "COOLER_BOOST"
	SectionUSBBacklight   = "USB_BACKLIGHT"
)

// ReservedSection reports whether a section name carries non-profile
// data.
func ReservedSection(name string) bool {
	switch name {
	case SectionAddressDefault, SectionCoolerBoost, SectionUSBBacklight:
		return true
	}
	return false
}

// Store reads and writes the INI configuration file. It holds only the
// path and re-reads the file on every operation, so concurrent edits
// (an editor, another tool) are picked up on the next call rather than
// served from a stale snapshot.
type Store struct {
	path string
}

// NewStore returns a store over the given file. An empty path selects
// DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (*ini.File, error) {
	f, err := ini.Load(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, s.path, err)
	}
	return f, nil
}

func sectionData(f *ini.File, name string) (map[string]string, error) {
	sec, err := f.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
	}
	return sec.KeysHash(), nil
}

// Names returns the user profile section names, in file order.
func (s *Store) Names() ([]string, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range f.SectionStrings() {
		if name == ini.DefaultSection || ReservedSection(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Profile loads and validates the named profile section.
func (s *Store) Profile(name string) (*Profile, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	data, err := sectionData(f, name)
	if err != nil {
		return nil, err
	}
	return BuildProfile(name, data)
}

// AddressMap parses the named section directly as an address map. An
// empty name selects the default map.
func (s *Store) AddressMap(section string) (*AddressMap, error) {
	if section == "" {
		section = SectionAddressDefault
	}
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	data, err := sectionData(f, section)
	if err != nil {
		return nil, err
	}
	return BuildAddressMap(section, data)
}

// AddressMapFor resolves the address map that applies to the named
// profile. The profile's address_profile reference is looked up on
// every call; nothing is cached, so a configuration edit between two
// operations is honoured by the second. Reserved section names and the
// empty string bypass the indirection and are parsed directly.
func (s *Store) AddressMapFor(profileName string) (*AddressMap, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}

	section := profileName
	switch {
	case section == "":
		section = SectionAddressDefault
	case !ReservedSection(section):
		sec, err := f.GetSection(profileName)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, profileName)
		}
		if !sec.HasKey(keyAddressProfile) {
			return nil, missingKey(profileName, keyAddressProfile)
		}
		section = sec.Key(keyAddressProfile).String()
	}

	data, err := sectionData(f, section)
	if err != nil {
		return nil, err
	}
	return BuildAddressMap(section, data)
}

// CoolerBoost loads the reserved COOLER_BOOST section.
func (s *Store) CoolerBoost() (CoolerBoost, error) {
	f, err := s.load()
	if err != nil {
		return CoolerBoost{}, err
	}
	data, err := sectionData(f, SectionCoolerBoost)
	if err != nil {
		return CoolerBoost{}, err
	}
	return buildCoolerBoost(data)
}

// USBBacklight loads the reserved USB_BACKLIGHT section.
func (s *Store) USBBacklight() (USBBacklight, error) {
	f, err := s.load()
	if err != nil {
		return USBBacklight{}, err
	}
	data, err := sectionData(f, SectionUSBBacklight)
	if err != nil {
		return USBBacklight{}, err
	}
	return buildUSBBacklight(data)
}

// SaveProfile validates the profile and rewrites its section in place,
// creating it when absent. All other sections survive untouched.
func (s *Store) SaveProfile(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f, err := s.load()
	if err != nil {
		return err
	}

	sec := f.Section(p.Name)
	sec.Key(keyAddressProfile).SetValue(p.AddressProfile)
	sec.Key("fan_mode").SetValue(strconv.Itoa(int(p.FanMode)))
	sec.Key("battery_charging_threshold").SetValue(strconv.Itoa(p.BatteryThreshold))
	for i, v := range p.CPU.Temps {
		sec.Key(fmt.Sprintf("cpu_temp_%d", i)).SetValue(strconv.Itoa(v))
	}
	for i, v := range p.CPU.Speeds {
		sec.Key(fmt.Sprintf("cpu_fan_speed_%d", i)).SetValue(strconv.Itoa(v))
	}
	for i, v := range p.GPU.Temps {
		sec.Key(fmt.Sprintf("gpu_temp_%d", i)).SetValue(strconv.Itoa(v))
	}
	for i, v := range p.GPU.Speeds {
		sec.Key(fmt.Sprintf("gpu_fan_speed_%d", i)).SetValue(strconv.Itoa(v))
	}

	if err := f.SaveTo(s.path); err != nil {
		return fmt.Errorf("profile: save %s: %w", s.path, err)
	}
	return nil
}
