package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value serializes the item list into the jsonb items column. A nil list is
// stored as an empty array.
func (items ManifestItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]ManifestItem(items))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes the jsonb items column.
func (items *ManifestItems) Scan(value interface{}) error {
	if value == nil {
		*items = ManifestItems{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []ManifestItem
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode manifest items: %w", err)
	}
	if decoded == nil {
		decoded = []ManifestItem{}
	}
	*items = decoded
	return nil
}

// Value serializes the vehicle link; nil stays NULL.
func (v *VehicleLink) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(*v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes the nullable vehicle_link column.
func (v *VehicleLink) Scan(value interface{}) error {
	if value == nil {
		*v = VehicleLink{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
