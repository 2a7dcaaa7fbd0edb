package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harvestmap/trust-cli/internal/model"
)

func TestValidTransition_System(t *testing.T) {
	assert.True(t, ValidTransition(model.StatusUnverified, model.StatusCommunityVerified, false))

	// No other system transitions exist.
	assert.False(t, ValidTransition(model.StatusUnverified, model.StatusOfficial, false))
	assert.False(t, ValidTransition(model.StatusCommunityVerified, model.StatusOfficial, false))
	assert.False(t, ValidTransition(model.StatusRejected, model.StatusCommunityVerified, false))
	assert.False(t, ValidTransition(model.StatusOfficial, model.StatusUnverified, false))
}

func TestValidTransition_Admin(t *testing.T) {
	for _, from := range model.AllStatuses {
		assert.True(t, ValidTransition(from, model.StatusOfficial, true), "admin to official from %s", from)
		assert.True(t, ValidTransition(from, model.StatusRejected, true))
		assert.True(t, ValidTransition(from, model.StatusFlagged, true))
		assert.True(t, ValidTransition(from, model.StatusDuplicate, true))
		assert.True(t, ValidTransition(from, model.StatusCommunityVerified, true))

		// Nobody transitions back to the initial state.
		assert.False(t, ValidTransition(from, model.StatusUnverified, true))
	}
}

func TestValidTransition_RejectsUnknownStatus(t *testing.T) {
	assert.False(t, ValidTransition("garbage", model.StatusOfficial, true))
	assert.False(t, ValidTransition(model.StatusUnverified, "garbage", true))
}

func TestLevelForPoints_Breakpoints(t *testing.T) {
	cases := []struct {
		points int64
		level  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{499, 3},
		{500, 4},
		{999, 4},
		{1000, 5},
		{5000, 5},
		{-50, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, LevelForPoints(c.points), "points=%d", c.points)
	}
}

func TestLevelForPoints_Monotone(t *testing.T) {
	prev := LevelForPoints(0)
	for p := int64(1); p <= 1200; p++ {
		cur := LevelForPoints(p)
		assert.GreaterOrEqual(t, cur, prev, "points=%d", p)
		prev = cur
	}
}

func TestDeltaForAction(t *testing.T) {
	d, ok := DeltaForAction(model.ActionClaimApproved)
	assert.True(t, ok)
	assert.Equal(t, int64(50), d)

	d, ok = DeltaForAction(model.ActionFalseReport)
	assert.True(t, ok)
	assert.Negative(t, d)

	_, ok = DeltaForAction("made_up_action")
	assert.False(t, ok)
}

func TestShouldAutoPromote(t *testing.T) {
	assert.True(t, ShouldAutoPromote(0.95, true))
	assert.True(t, ShouldAutoPromote(0.9, true))
	assert.False(t, ShouldAutoPromote(0.89, true))
	assert.False(t, ShouldAutoPromote(0.95, false))
	assert.False(t, ShouldAutoPromote(0.2, false))
}

func TestIsTrustedSource(t *testing.T) {
	allow := []string{"feedingamerica.org", "usda.gov", "https://211.org"}

	assert.True(t, IsTrustedSource("https://www.feedingamerica.org/find-food", allow))
	assert.True(t, IsTrustedSource("https://pantry.feedingamerica.org/x", allow))
	assert.True(t, IsTrustedSource("https://fns.usda.gov/programs", allow))
	assert.True(t, IsTrustedSource("https://211.org/food", allow))

	assert.False(t, IsTrustedSource("https://feedingamerica.org.evil.com/", allow))
	assert.False(t, IsTrustedSource("https://randomblog.net/pantries", allow))
	assert.False(t, IsTrustedSource("", allow))
	assert.False(t, IsTrustedSource("https://usda.gov/x", nil))
}
