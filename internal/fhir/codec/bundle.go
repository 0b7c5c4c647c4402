package codec

// BundleEntry is a single resource extracted from a FHIR Bundle, still in
// its wire shape, tagged with its resourceType.
type BundleEntry struct {
	ResourceType string
	Resource     map[string]any
}

// DecodeBundle extracts the entry resources from a FHIR Bundle. Entries
// without a resource object are skipped; a malformed entry list is a
// DecodeError.
func DecodeBundle(data []byte) ([]BundleEntry, error) {
	raw, err := parseObject("Bundle", data)
	if err != nil {
		return nil, err
	}
	if rt := getString(raw, "resourceType", ""); rt != "Bundle" {
		return nil, &DecodeError{Resource: "Bundle", Field: "resourceType", Message: "must be 'Bundle'"}
	}
	entryList, err := requireList("Bundle", raw, "entry")
	if err != nil {
		return nil, err
	}
	var entries []BundleEntry
	for _, v := range entryList {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &DecodeError{Resource: "Bundle", Field: "entry", Message: "entries must be objects"}
		}
		resource, ok := getMap(m, "resource")
		if !ok {
			continue
		}
		entries = append(entries, BundleEntry{
			ResourceType: getString(resource, "resourceType", ""),
			Resource:     resource,
		})
	}
	return entries, nil
}
