package index

import (
	"fmt"
	"net/url"
	"strings"
)

// Entity names used in keys.
const (
	EntityUser       = "user"
	EntityEmployee   = "employee"
	EntityAttendance = "attendance"
	EntityBiometric  = "biometric"
)

// Index names used in keys.
const (
	IndexEmail        = "email"
	IndexDepartment   = "department"
	IndexAll          = "all"
	IndexDate         = "date"
	IndexEmployeeDate = "employee-date"
	IndexType         = "type"
)

// Layout names accepted by ParseLayout.
const (
	LayoutNamespaced = "namespaced"
	LayoutLegacy     = "legacy"
)

// Keyspace maps records and index entries to store keys.
type Keyspace interface {
	// Name returns the layout name.
	Name() string
	// Record is the key of a primary record. Most entities have one id part,
	// biometrics have two (employee id and type).
	Record(entity string, parts ...string) string
	// RecordPrefix is the prefix shared by every record of entity whose key
	// starts with parts.
	RecordPrefix(entity string, parts ...string) string
	// IsRecord reports whether key is a primary record of entity with
	// exactly n id parts.
	IsRecord(entity, key string, n int) bool
	// Unique is the key of a unique index entry.
	Unique(entity, index, value string) string
	// Group is the key of a multi index group.
	Group(entity, index string, parts ...string) string
	// GroupPrefix returns the prefix shared by every group of index. It
	// reports false when the layout has no such prefix.
	GroupPrefix(entity, index string) (string, bool)
	// IsIndex reports whether key is a unique entry or group of index.
	IsIndex(entity, index, key string) bool
	// ValidateID reports whether id can be stored as a key part.
	ValidateID(entity, id string) error
}

// ParseLayout returns the keyspace registered under name. The empty name
// selects the namespaced layout.
func ParseLayout(name string) (Keyspace, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutNamespaced:
		return Namespaced{}, nil
	case LayoutLegacy:
		return Legacy{}, nil
	default:
		return nil, fmt.Errorf("unknown key layout %q", name)
	}
}

// Namespaced keeps records under rec/ and indexes under idx/. Every part is
// path-escaped so ids may hold any character, including '/'.
type Namespaced struct{}

func (Namespaced) Name() string { return LayoutNamespaced }

func joinEscaped(b *strings.Builder, parts []string) {
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
}

func (Namespaced) Record(entity string, parts ...string) string {
	var b strings.Builder
	b.WriteString("rec/")
	b.WriteString(entity)
	joinEscaped(&b, parts)
	return b.String()
}

func (n Namespaced) RecordPrefix(entity string, parts ...string) string {
	return n.Record(entity, parts...) + "/"
}

func (n Namespaced) IsRecord(entity, key string, parts int) bool {
	rest, ok := strings.CutPrefix(key, n.RecordPrefix(entity))
	if !ok {
		return false
	}
	segs := strings.Split(rest, "/")
	if len(segs) != parts {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

func (Namespaced) Unique(entity, index, value string) string {
	return "idx/" + entity + "/" + index + "/" + url.PathEscape(value)
}

func (Namespaced) Group(entity, index string, parts ...string) string {
	var b strings.Builder
	b.WriteString("idx/")
	b.WriteString(entity)
	b.WriteByte('/')
	b.WriteString(index)
	joinEscaped(&b, parts)
	return b.String()
}

func (Namespaced) GroupPrefix(entity, index string) (string, bool) {
	return "idx/" + entity + "/" + index + "/", true
}

func (n Namespaced) IsIndex(entity, index, key string) bool {
	p, _ := n.GroupPrefix(entity, index)
	return key == strings.TrimSuffix(p, "/") || strings.HasPrefix(key, p)
}

func (Namespaced) ValidateID(entity, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidID, entity)
	}
	return nil
}

// Legacy reproduces the colon-separated keys of existing deployments. Ids that
// contain ':' or equal a reserved discriminator would collide with index
// keys and are rejected.
type Legacy struct{}

var legacyReserved = map[string]bool{
	"ids":      true,
	"email":    true,
	"date":     true,
	"employee": true,
	"type":     true,
}

func (Legacy) Name() string { return LayoutLegacy }

func (Legacy) Record(entity string, parts ...string) string {
	return entity + ":" + strings.Join(parts, ":")
}

func (l Legacy) RecordPrefix(entity string, parts ...string) string {
	if len(parts) == 0 {
		return entity + ":"
	}
	return l.Record(entity, parts...) + ":"
}

func (Legacy) IsRecord(entity, key string, parts int) bool {
	rest, ok := strings.CutPrefix(key, entity+":")
	if !ok {
		return false
	}
	segs := strings.Split(rest, ":")
	if len(segs) != parts {
		return false
	}
	for _, s := range segs {
		if s == "" || legacyReserved[s] {
			return false
		}
	}
	return true
}

func (Legacy) Unique(entity, index, value string) string {
	return entity + ":" + index + ":" + value
}

func (Legacy) Group(entity, index string, parts ...string) string {
	switch {
	case entity == EntityEmployee && index == IndexAll:
		return "employee:ids"
	case entity == EntityEmployee && index == IndexDepartment && len(parts) == 1:
		return "employee:" + parts[0] + ":employees"
	case entity == EntityAttendance && index == IndexEmployeeDate && len(parts) == 2:
		return "attendance:employee:" + parts[0] + ":date:" + parts[1]
	}
	if len(parts) == 0 {
		return entity + ":" + index
	}
	return entity + ":" + index + ":" + strings.Join(parts, ":")
}

func (Legacy) GroupPrefix(entity, index string) (string, bool) {
	switch {
	case entity == EntityEmployee && (index == IndexAll || index == IndexDepartment):
		return "", false
	case entity == EntityAttendance && index == IndexEmployeeDate:
		return "attendance:employee:", true
	}
	return entity + ":" + index + ":", true
}

func (l Legacy) IsIndex(entity, index, key string) bool {
	switch {
	case entity == EntityEmployee && index == IndexAll:
		return key == "employee:ids"
	case entity == EntityEmployee && index == IndexDepartment:
		rest, ok := strings.CutPrefix(key, "employee:")
		return ok && strings.HasSuffix(rest, ":employees") && rest != ":employees"
	}
	p, _ := l.GroupPrefix(entity, index)
	return strings.HasPrefix(key, p)
}

func (Legacy) ValidateID(entity, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty %s id", ErrInvalidID, entity)
	case strings.Contains(id, ":"):
		return fmt.Errorf("%w: %s id %q contains ':'", ErrInvalidID, entity, id)
	case legacyReserved[id]:
		return fmt.Errorf("%w: %s id %q is reserved", ErrInvalidID, entity, id)
	}
	return nil
}
