package wakey_device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	wakey_packet "wakey-bot/wakey/packet"

	"gopkg.in/yaml.v3"
)

type Device struct {
	Name        string    `yaml:"name" json:"name"`
	MACAddress  string    `yaml:"mac_address" json:"mac_address"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	LastWoken   time.Time `yaml:"last_woken,omitempty" json:"last_woken,omitempty"`
	AddedAt     time.Time `yaml:"added_at" json:"added_at"`
}

// DeviceStore maps friendly names to MAC addresses. It is shared between the
// dispatcher and the HTTP API, so every method locks.
type DeviceStore struct {
	mu         sync.RWMutex
	Devices    map[string]*Device `yaml:"devices"`
	configPath string
}

type DeviceConfig struct {
	ConfigPath string
}

// Command words cannot be device names.
var reservedNames = []string{"ip", "wake", "ping", "force", "help"}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		ConfigPath: getDefaultConfigPath(),
	}
}

func NewDeviceStore(config DeviceConfig) (*DeviceStore, error) {
	if config.ConfigPath == "" {
		config.ConfigPath = getDefaultConfigPath()
	}

	store := &DeviceStore{
		Devices:    make(map[string]*Device),
		configPath: config.ConfigPath,
	}

	err := store.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load device store: %w", err)
	}

	return store, nil
}

func (ds *DeviceStore) Path() string {
	return ds.configPath
}

func (ds *DeviceStore) AddDevice(name, macAddress, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("device name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("device name '%s' cannot contain whitespace", name)
	}

	for _, reserved := range reservedNames {
		if strings.ToLower(name) == reserved {
			return fmt.Errorf("device name '%s' is reserved", name)
		}
	}
	// "wake" decodes a MAC before it looks at device names.
	if _, err := wakey_packet.ParseAnyMAC(name); err == nil {
		return fmt.Errorf("device name '%s' cannot be a raw MAC address", name)
	}

	mac, err := wakey_packet.ParseAnyMAC(macAddress)
	if err != nil {
		return fmt.Errorf("invalid MAC address: %w", err)
	}
	formattedMAC := wakey_packet.FormatMAC(mac)

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.Devices[name]; exists {
		return fmt.Errorf("device '%s' already exists", name)
	}

	for existingName, device := range ds.Devices {
		if device.MACAddress == formattedMAC {
			return fmt.Errorf("MAC address %s is already used by device '%s'", formattedMAC, existingName)
		}
	}

	ds.Devices[name] = &Device{
		Name:        name,
		MACAddress:  formattedMAC,
		Description: strings.TrimSpace(description),
		AddedAt:     time.Now(),
	}

	if err := ds.save(); err != nil {
		delete(ds.Devices, name)
		return err
	}
	return nil
}

func (ds *DeviceStore) RemoveDevice(name string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	device, exists := ds.Devices[name]
	if !exists {
		return fmt.Errorf("device '%s' not found", name)
	}

	delete(ds.Devices, name)
	if err := ds.save(); err != nil {
		ds.Devices[name] = device
		return err
	}
	return nil
}

// GetDevice returns a copy of the named device.
func (ds *DeviceStore) GetDevice(name string) (Device, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	device, exists := ds.Devices[name]
	if !exists {
		return Device{}, fmt.Errorf("device '%s' not found", name)
	}

	return *device, nil
}

// LookupMAC resolves a device name to its hardware address.
func (ds *DeviceStore) LookupMAC(name string) ([wakey_packet.MACLength]byte, bool) {
	device, err := ds.GetDevice(name)
	if err != nil {
		return [wakey_packet.MACLength]byte{}, false
	}

	mac, err := wakey_packet.ParseAnyMAC(device.MACAddress)
	if err != nil {
		return [wakey_packet.MACLength]byte{}, false
	}

	return mac, true
}

func (ds *DeviceStore) ListDevices() []Device {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	devices := make([]Device, 0, len(ds.Devices))
	for _, device := range ds.Devices {
		devices = append(devices, *device)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})

	return devices
}

func (ds *DeviceStore) UpdateLastWoken(name string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	device, exists := ds.Devices[name]
	if !exists {
		return fmt.Errorf("device '%s' not found", name)
	}

	previous := device.LastWoken
	device.LastWoken = time.Now()
	if err := ds.save(); err != nil {
		device.LastWoken = previous
		return err
	}
	return nil
}

func (ds *DeviceStore) DeviceExists(name string) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	_, exists := ds.Devices[name]
	return exists
}

func (ds *DeviceStore) GetDeviceCount() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.Devices)
}

func (ds *DeviceStore) Load() error {
	data, err := os.ReadFile(ds.configPath)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := yaml.Unmarshal(data, ds); err != nil {
		return fmt.Errorf("failed to parse %s: %w", ds.configPath, err)
	}
	if ds.Devices == nil {
		ds.Devices = make(map[string]*Device)
	}

	return nil
}

// save writes the store to disk; callers hold ds.mu.
func (ds *DeviceStore) save() error {
	configDir := filepath.Dir(ds.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to marshal devices: %w", err)
	}

	err = os.WriteFile(ds.configPath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func getDefaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "wakey-devices.yaml"
	}

	return filepath.Join(configDir, "wakey", "devices.yaml")
}
