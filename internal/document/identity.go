package document

import "strings"

// FindDuplicates returns the ids of every instance whose non-empty nickname
// matches another instance's nickname, ignoring case.
func FindDuplicates(d *Document) map[string]struct{} {
	byName := make(map[string][]string)
	for _, id := range d.ids {
		nick := d.instances[id].Nickname
		if nick == "" {
			continue
		}
		key := strings.ToLower(nick)
		byName[key] = append(byName[key], id)
	}

	dups := make(map[string]struct{})
	for _, ids := range byName {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			dups[id] = struct{}{}
		}
	}
	return dups
}

func (d *Document) recomputeDuplicates() {
	d.duplicates = FindDuplicates(d)
}

// Duplicates returns the ids currently in nickname conflict.
func (d *Document) Duplicates() map[string]struct{} {
	out := make(map[string]struct{}, len(d.duplicates))
	for id := range d.duplicates {
		out[id] = struct{}{}
	}
	return out
}

// IsDuplicate reports whether id's nickname collides with another instance.
func (d *Document) IsDuplicate(id string) bool {
	_, ok := d.duplicates[id]
	return ok
}
