package labels

// ValidateLabels keeps the detected labels that are present in valid,
// preserving the order of detected. The caller owns any caching of valid.
func ValidateLabels(detected, valid []string) []string {
	validSet := make(map[string]struct{}, len(valid))
	for _, v := range valid {
		validSet[v] = struct{}{}
	}
	kept := make([]string, 0, len(detected))
	for _, label := range detected {
		if _, ok := validSet[label]; ok {
			kept = append(kept, label)
		}
	}
	return kept
}

// Dropped returns the labels of detected that ValidateLabels would remove
func Dropped(detected, valid []string) []string {
	validSet := make(map[string]struct{}, len(valid))
	for _, v := range valid {
		validSet[v] = struct{}{}
	}
	var dropped []string
	for _, label := range detected {
		if _, ok := validSet[label]; !ok {
			dropped = append(dropped, label)
		}
	}
	return dropped
}
