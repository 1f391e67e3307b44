package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is the decoded form of a DNS-SD TXT record.
type TXTRecordMap map[string]string

// DeviceTXT is the typed content of a device TXT record.
type DeviceTXT struct {
	Scheme  string
	Path    string
	ID      string
	Kind    string
	Version string
}

// EncodeDeviceTXT builds TXT records for an advertised device.
// Defaults are omitted.
func EncodeDeviceTXT(info DeviceTXT) TXTRecordMap {
	txt := make(TXTRecordMap)
	if info.Scheme != "" && info.Scheme != DefaultScheme {
		txt[TXTKeyScheme] = info.Scheme
	}
	if info.Path != "" && info.Path != DefaultPath {
		txt[TXTKeyPath] = info.Path
	}
	if info.ID != "" {
		txt[TXTKeyID] = info.ID
	}
	if info.Kind != "" {
		txt[TXTKeyKind] = info.Kind
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	return txt
}

// DecodeDeviceTXT parses TXT records, applying defaults for absent keys.
func DecodeDeviceTXT(txt TXTRecordMap) (DeviceTXT, error) {
	info := DeviceTXT{
		Scheme:  strings.ToLower(txt[TXTKeyScheme]),
		Path:    txt[TXTKeyPath],
		ID:      txt[TXTKeyID],
		Kind:    txt[TXTKeyKind],
		Version: txt[TXTKeyVersion],
	}
	if info.Scheme == "" {
		info.Scheme = DefaultScheme
	}
	if info.Scheme != "http" && info.Scheme != "https" {
		return DeviceTXT{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTXTRecord, info.Scheme)
	}
	if info.Path == "" {
		info.Path = DefaultPath
	}
	if !strings.HasPrefix(info.Path, "/") {
		return DeviceTXT{}, fmt.Errorf("%w: path %q must start with /", ErrInvalidTXTRecord, info.Path)
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings, sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(txt))
	for _, k := range keys {
		result = append(result, k+"="+txt[k])
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
// Keys are case-insensitive and stored lower-cased.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		k = strings.ToLower(k)
		if !found {
			// Key without value (boolean flag)
			txt[k] = ""
			continue
		}
		txt[k] = v
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
