package hazard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"safety", Safety, false},
		{"Financial", Financial, false},
		{" PRIVACY ", Privacy, false},
		{"health", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Category(7), 1, "bogus")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = New(Safety, 11, "too severe")
	assert.ErrorIs(t, err, ErrInvalidSeverity)

	h, err := New(Safety, 9, "overheats")
	require.NoError(t, err)
	assert.Equal(t, Severity(9), h.Severity)
}

func TestSetGroupsByCategory(t *testing.T) {
	set := MustOf(FireHazard, ElectricEnergyConsumption, LogEnergyConsumption, Explosion)

	assert.Equal(t, 4, set.Len())
	assert.False(t, set.Empty())
	assert.Equal(t, []Category{Safety, Financial, Privacy}, set.Categories())

	sev, ok := set.MaxSeverity(Safety)
	require.True(t, ok)
	assert.Equal(t, Severity(10), sev)

	safety := set.InCategory(Safety)
	require.Len(t, safety, 2)
	assert.Equal(t, Explosion, safety[0].ID, "highest severity first")
}

func TestSetDeduplicates(t *testing.T) {
	fire := MustLookup(FireHazard)
	set := MustSet(fire, fire)
	assert.Equal(t, 1, set.Len())
}

func TestSetOrderIndependent(t *testing.T) {
	a := MustOf(FireHazard, SpendMoney, TakePictures, PowerSurge)
	b := MustOf(PowerSurge, TakePictures, SpendMoney, FireHazard)
	assert.Equal(t, a.All(), b.All())
}

func TestZeroSet(t *testing.T) {
	var s Set
	assert.True(t, s.Empty())
	assert.Empty(t, s.Categories())
	_, ok := s.MaxSeverity(Privacy)
	assert.False(t, ok)
	assert.Empty(t, s.All())
}

func TestSetContainsAndOutside(t *testing.T) {
	set := MustOf(FireHazard, WaterFlooding)
	assert.True(t, set.Contains(FireHazard))
	assert.False(t, set.Contains(SpendMoney))

	outside := set.Outside([]ID{FireHazard})
	require.Len(t, outside, 1)
	assert.Equal(t, WaterFlooding, outside[0].ID)
}

func TestCatalog(t *testing.T) {
	all := Catalog()
	assert.Len(t, all, 22)
	for i, h := range all {
		assert.NoError(t, h.Validate(), h.ID)
		if i > 0 {
			assert.Less(t, string(all[i-1].ID), string(h.ID))
		}
	}

	_, err := Lookup("unicorn")
	assert.ErrorIs(t, err, ErrUnknownHazard)
}
