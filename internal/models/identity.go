package models

// Identity is the verified caller as supplied by the authentication layer.
type Identity struct {
	SubjectID string
	Email     string
	Groups    []string
}

func (i Identity) OwnerKey() OwnerKey {
	return OwnerKey{SubjectID: i.SubjectID, Email: i.Email}
}

func (i Identity) InGroup(group string) bool {
	for _, g := range i.Groups {
		if g == group {
			return true
		}
	}
	return false
}
