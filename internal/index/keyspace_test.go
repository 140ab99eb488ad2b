package index

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyKeys(t *testing.T) {
	k := Legacy{}
	tests := []struct {
		got  string
		want string
	}{
		{k.Record(EntityUser, "u1"), "user:u1"},
		{k.Unique(EntityUser, IndexEmail, "a@x.com"), "user:email:a@x.com"},
		{k.Record(EntityEmployee, "e1"), "employee:e1"},
		{k.Group(EntityEmployee, IndexDepartment, "d1"), "employee:d1:employees"},
		{k.Group(EntityEmployee, IndexAll), "employee:ids"},
		{k.Record(EntityAttendance, "a1"), "attendance:a1"},
		{k.Group(EntityAttendance, IndexDate, "2024-01-10"), "attendance:date:2024-01-10"},
		{k.Group(EntityAttendance, IndexEmployeeDate, "e1", "2024-01-10"), "attendance:employee:e1:date:2024-01-10"},
		{k.Record(EntityBiometric, "e1", "face"), "biometric:e1:face"},
		{k.RecordPrefix(EntityBiometric, "e1"), "biometric:e1:"},
		{k.Group(EntityBiometric, IndexType, "face"), "biometric:type:face"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}

	_, ok := k.GroupPrefix(EntityEmployee, IndexDepartment)
	assert.False(t, ok)
	p, ok := k.GroupPrefix(EntityAttendance, IndexDate)
	assert.True(t, ok)
	assert.Equal(t, "attendance:date:", p)
}

func TestLegacyIsRecord(t *testing.T) {
	k := Legacy{}
	assert.True(t, k.IsRecord(EntityUser, "user:u1", 1))
	assert.False(t, k.IsRecord(EntityUser, "user:email:a@x.com", 1))
	assert.False(t, k.IsRecord(EntityEmployee, "employee:ids", 1))
	assert.False(t, k.IsRecord(EntityEmployee, "employee:d1:employees", 1))
	assert.True(t, k.IsRecord(EntityBiometric, "biometric:e1:face", 2))
	assert.False(t, k.IsRecord(EntityBiometric, "biometric:type:face", 2))
}

func TestLegacyValidateID(t *testing.T) {
	k := Legacy{}
	for _, id := range []string{"", "a:b", "ids", "email", "date", "employee", "type"} {
		assert.ErrorIs(t, k.ValidateID(EntityEmployee, id), ErrInvalidID, "id %q", id)
	}
	assert.NoError(t, k.ValidateID(EntityEmployee, "0b6f3c1e-8d4a-4a57-9b8e-3f5f0e2f6a11"))
}

func TestNamespacedKeys(t *testing.T) {
	k := Namespaced{}
	assert.Equal(t, "rec/user/u1", k.Record(EntityUser, "u1"))
	assert.Equal(t, "rec/biometric/e%2F1/face", k.Record(EntityBiometric, "e/1", "face"))
	assert.Equal(t, "idx/user/email/a@x.com", k.Unique(EntityUser, IndexEmail, "a@x.com"))
	assert.Equal(t, "idx/employee/all", k.Group(EntityEmployee, IndexAll))
	assert.Equal(t, "idx/attendance/employee-date/e1/2024-01-10", k.Group(EntityAttendance, IndexEmployeeDate, "e1", "2024-01-10"))
	assert.True(t, k.IsRecord(EntityBiometric, "rec/biometric/e%2F1/face", 2))
	assert.False(t, k.IsRecord(EntityBiometric, "rec/biometric/e1", 2))
	assert.NoError(t, k.ValidateID(EntityUser, "ids"))
	assert.ErrorIs(t, k.ValidateID(EntityUser, ""), ErrInvalidID)
}

// randomID draws ids from an alphabet rich in separators and discriminators.
func randomID(r *rand.Rand) string {
	pieces := []string{"a", "Z", "0", ":", "/", "%", "%2F", "ids", "email", "date", "employee", "type", "idx", "rec", " ", "é", "-", "."}
	var b strings.Builder
	n := 1 + r.IntN(5)
	for range n {
		b.WriteString(pieces[r.IntN(len(pieces))])
	}
	return b.String()
}

func TestNamespacedRecordsNeverCollideWithIndexes(t *testing.T) {
	k := Namespaced{}
	r := rand.New(rand.NewPCG(1, 2))
	entities := []string{EntityUser, EntityEmployee, EntityAttendance, EntityBiometric}
	indexes := []string{IndexEmail, IndexDepartment, IndexAll, IndexDate, IndexEmployeeDate, IndexType}

	for i := 0; i < 2000; i++ {
		entity := entities[r.IntN(len(entities))]
		a, b := randomID(r), randomID(r)

		var rec string
		parts := 1
		if entity == EntityBiometric {
			rec, parts = k.Record(entity, a, b), 2
		} else {
			rec = k.Record(entity, a)
		}
		require.True(t, k.IsRecord(entity, rec, parts), "record key %q not recognised", rec)

		for _, e := range entities {
			for _, ix := range indexes {
				idxKeys := []string{
					k.Unique(e, ix, a),
					k.Group(e, ix),
					k.Group(e, ix, b),
					k.Group(e, ix, a, b),
				}
				for _, ik := range idxKeys {
					msg := fmt.Sprintf("record %q vs index %q", rec, ik)
					require.NotEqual(t, rec, ik, msg)
					require.False(t, strings.HasPrefix(ik, rec), msg)
					require.False(t, strings.HasPrefix(rec, ik), msg)
					require.False(t, k.IsRecord(e, ik, parts), msg)
				}
			}
		}
	}
}

func TestNamespacedDistinctIDsDistinctKeys(t *testing.T) {
	k := Namespaced{}
	r := rand.New(rand.NewPCG(3, 4))
	seen := map[string][2]string{}
	for i := 0; i < 2000; i++ {
		a, b := randomID(r), randomID(r)
		key := k.Record(EntityBiometric, a, b)
		if prev, ok := seen[key]; ok {
			require.Equal(t, prev, [2]string{a, b}, "two id pairs share key %q", key)
		}
		seen[key] = [2]string{a, b}
	}
}

func TestParseLayout(t *testing.T) {
	ks, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutNamespaced, ks.Name())

	ks, err = ParseLayout(" Legacy ")
	require.NoError(t, err)
	assert.Equal(t, LayoutLegacy, ks.Name())

	_, err = ParseLayout("flat")
	assert.Error(t, err)
}

func TestIsIndex(t *testing.T) {
	for _, k := range []Keyspace{Namespaced{}, Legacy{}} {
		t.Run(k.Name(), func(t *testing.T) {
			assert.True(t, k.IsIndex(EntityEmployee, IndexAll, k.Group(EntityEmployee, IndexAll)))
			assert.True(t, k.IsIndex(EntityEmployee, IndexDepartment, k.Group(EntityEmployee, IndexDepartment, "d1")))
			assert.True(t, k.IsIndex(EntityAttendance, IndexDate, k.Group(EntityAttendance, IndexDate, "2024-01-10")))
			assert.True(t, k.IsIndex(EntityAttendance, IndexEmployeeDate, k.Group(EntityAttendance, IndexEmployeeDate, "e1", "2024-01-10")))
			assert.True(t, k.IsIndex(EntityUser, IndexEmail, k.Unique(EntityUser, IndexEmail, "a@x.com")))

			assert.False(t, k.IsIndex(EntityEmployee, IndexDepartment, k.Record(EntityEmployee, "e1")))
			assert.False(t, k.IsIndex(EntityEmployee, IndexDepartment, k.Group(EntityEmployee, IndexAll)))
			assert.False(t, k.IsIndex(EntityAttendance, IndexDate, k.Group(EntityAttendance, IndexEmployeeDate, "e1", "2024-01-10")))
		})
	}
}
