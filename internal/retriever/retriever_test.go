package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []model.EntityType{
		model.EntityCluster, model.EntityMachine, model.EntityMember,
		model.EntityService, model.EntityCache, model.EntityProxy,
	}, reg.Entities())
	assert.Len(t, reg.All(), 6)

	for _, r := range reg.All() {
		s, ok := reg.Schemas().Lookup(r.Entity())
		require.True(t, ok, r.Entity())
		assert.Same(t, r.Schema(), s)
		assert.Equal(t, r.Entity(), s.Entity())
	}
}

func TestRegistry_ReportCapability(t *testing.T) {
	cases := []struct {
		entity  model.EntityType
		support bool
	}{
		{model.EntityCluster, false},
		{model.EntityMachine, false},
		{model.EntityMember, true},
		{model.EntityService, true},
		{model.EntityCache, true},
		{model.EntityProxy, true},
	}
	reg := DefaultRegistry()
	for _, tc := range cases {
		t.Run(string(tc.entity), func(t *testing.T) {
			r, ok := reg.Lookup(tc.entity)
			require.True(t, ok)
			assert.Equal(t, tc.support, r.SupportsReport())
			assert.Equal(t, tc.support, !r.Report().IsZero())
		})
	}
}

func TestRegistry_Select(t *testing.T) {
	reg := DefaultRegistry()

	rs, err := reg.Select([]model.EntityType{model.EntityCache, model.EntityMachine})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, model.EntityCache, rs[0].Entity())
	assert.Equal(t, model.EntityMachine, rs[1].Entity())

	rs, err = reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, rs, 6)

	_, err = reg.Select([]model.EntityType{"jvm"})
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidRequest))
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(NewMachine(), NewMachine())
	assert.Error(t, err)
}

func TestReportColumnsAreDistinct(t *testing.T) {
	for _, r := range DefaultRegistry().All() {
		if !r.SupportsReport() {
			continue
		}
		seen := map[string]bool{}
		for _, c := range r.Report().Columns {
			assert.False(t, seen[c], "%s repeats %s", r.Entity(), c)
			seen[c] = true
		}
	}
}
