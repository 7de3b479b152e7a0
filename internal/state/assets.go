package state

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// AssetPath reads a single dotted path out of a PULL state's Assets blob
// without unmarshalling the whole record, e.g. one resolved package version
// at "stage_packages.libfoo".
func AssetPath(ps *PartState, path string) (string, bool) {
	if ps == nil || ps.Assets == nil {
		return "", false
	}
	data, err := json.Marshal(ps.Assets)
	if err != nil {
		return "", false
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// SetAssetPath writes a single dotted path into ps's Assets blob in place,
// the complementary path-addressed update, without requiring the caller to
// reconstruct the whole Assets map.
func SetAssetPath(ps *PartState, path, value string) error {
	data, err := json.Marshal(ps.Assets)
	if err != nil {
		return err
	}
	out, err := sjson.SetBytes(data, path, value)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(out, &m); err != nil {
		return err
	}
	ps.Assets = m
	return nil
}
