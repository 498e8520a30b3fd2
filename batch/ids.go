package batch

import (
	"strings"

	odatajson "github.com/reoring/odatajson"
)

// registry tracks Content-IDs and atomicity group ids across one batch. It is
// shared by the writer and ReadBatch.
type registry struct {
	// owner maps a Content-ID to its atomicity group ("" for top level).
	owner  map[string]string
	groups map[string]bool // group id -> closed
}

func newRegistry() *registry {
	return &registry{owner: map[string]string{}, groups: map[string]bool{}}
}

func (r *registry) used(id string) bool {
	_, isOp := r.owner[id]
	_, isGroup := r.groups[id]
	return isOp || isGroup
}

func (r *registry) addContentID(id, group string) error {
	if r.used(id) {
		return odatajson.NewError(odatajson.CodeDuplicateContentID, "contentID", id)
	}
	r.owner[id] = group
	return nil
}

func (r *registry) openGroup(group string) error {
	if r.used(group) {
		return odatajson.NewError(odatajson.CodeDuplicateContentID, "contentID", group)
	}
	r.groups[group] = false
	return nil
}

func (r *registry) closeGroup(group string) { r.groups[group] = true }

// resolve checks that an operation in group may refer to id. Legal targets
// are earlier top-level operations, earlier operations of the same group and
// closed groups.
func (r *registry) resolve(id, group string) error {
	if owner, ok := r.owner[id]; ok {
		if owner != "" && owner != group {
			return odatajson.NewError(odatajson.CodeDependsOnCrossGroup, "contentID", id, "group", owner)
		}
		return nil
	}
	if closed, ok := r.groups[id]; ok && closed {
		return nil
	}
	return odatajson.NewError(odatajson.CodeDependsOnUnknown, "contentID", id)
}

func (r *registry) resolveAll(ids []string, group string) error {
	for _, id := range ids {
		if err := r.resolve(id, group); err != nil {
			return err
		}
	}
	return nil
}

// referencedID returns the Content-ID named by a "$id" or "$id/..." URL.
// "$batch", "$metadata" and other system resources are not references.
func referencedID(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, "$") {
		return "", false
	}
	id, _, _ := strings.Cut(rawURL[1:], "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" || strings.HasPrefix(id, "$") {
		return "", false
	}
	switch id {
	case "batch", "metadata", "entity", "crossjoin", "all", "root":
		return "", false
	}
	return id, true
}
