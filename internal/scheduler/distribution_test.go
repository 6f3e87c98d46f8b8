package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecomposeDefaultSplit(t *testing.T) {
	rules := DefaultGlobalRules()
	assert.Equal(t, []int{2, 2, 1}, Decompose(nil, 5, rules))
	assert.Equal(t, []int{2, 2, 2}, Decompose(nil, 6, rules))
	assert.Equal(t, []int{2, 2, 2, 1}, Decompose(nil, 7, rules))
	assert.Equal(t, []int{1}, Decompose(nil, 1, rules))
	assert.Nil(t, Decompose(nil, 0, rules))
}

func TestDecomposeStrictPatternIsVerbatim(t *testing.T) {
	rules := DefaultGlobalRules()
	rules.EnforceDistributionPatterns = true

	assert.Equal(t, []int{2, 2, 1}, Decompose([]int{2, 2, 1}, 5, rules))
	assert.Equal(t, []int{3, 2}, Decompose([]int{3, 2}, 5, rules))
}

func TestDecomposeSplitsThreeWithoutEnforcement(t *testing.T) {
	assert.Equal(t, []int{2, 1, 2}, Decompose([]int{3, 2}, 5, DefaultGlobalRules()))
}

func TestDecomposeSupplementsMismatchedPattern(t *testing.T) {
	rules := DefaultGlobalRules()
	rules.EnforceDistributionPatterns = true

	// sums to 4, weekly hours 5: strict mode does not apply
	assert.Equal(t, []int{2, 2, 1}, Decompose([]int{2, 2}, 5, rules))
	// blocks that no longer fit are skipped
	assert.Equal(t, []int{2, 1}, Decompose([]int{2, 2}, 3, rules))
}

func TestDecomposeHonoursMaximumBlockSize(t *testing.T) {
	rules := DefaultGlobalRules()
	rules.MaximumBlockSize = 1
	assert.Equal(t, []int{1, 1, 1}, Decompose(nil, 3, rules))
	assert.Equal(t, []int{1, 1, 1}, Decompose([]int{2, 1}, 3, rules))
}

func TestParseDistribution(t *testing.T) {
	blocks, err := ParseDistribution(" 2 + 2 + 1 ")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, blocks)

	_, err = ParseDistribution("2+x")
	assert.Error(t, err)
	_, err = ParseDistribution("2+0")
	assert.Error(t, err)
}

func TestBuildTasksPools(t *testing.T) {
	mappings := []*Mapping{
		{ID: "m1", ClassID: "c1", SubjectID: "math", SubjectName: "Matematik", TeacherID: "t1", WeeklyHours: 5},
		{ID: "m2", ClassID: VirtualClassID("t2"), SubjectID: ClubSubjectID, SubjectName: ClubSubjectName, TeacherID: "t2", WeeklyHours: 2, Club: ClubTeacherBootstrap},
	}
	hours := map[mappingKey]int{mappings[0].key(): 5, mappings[1].key(): 2}

	pools := buildTasks(mappings, hours, DefaultGlobalRules())
	require.Len(t, pools.all, 4)
	assert.Len(t, pools.blocks, 2)
	assert.Len(t, pools.single, 1)
	require.Len(t, pools.club, 1)
	assert.Equal(t, "m1#0", pools.all[0].ID)
	assert.True(t, pools.club[0].protected)
}

func TestBuildTasksKeepsClubHoursInOneBlock(t *testing.T) {
	rules := DefaultGlobalRules()
	rules.MaximumBlockSize = 1
	mappings := []*Mapping{
		{ID: "m1", ClassID: "c1", SubjectID: "club", SubjectName: "Kulüp", TeacherID: "t1", WeeklyHours: 2, Distribution: []int{1, 1}, Club: ClubAssigned},
		{ID: "m2", ClassID: "c2", SubjectID: "club", SubjectName: "Kulüp", TeacherID: "t2", WeeklyHours: 3, Club: ClubAssigned},
	}
	hours := map[mappingKey]int{mappings[0].key(): 2, mappings[1].key(): 3}

	pools := buildTasks(mappings, hours, rules)
	require.Len(t, pools.club, 3)
	assert.Equal(t, 2, pools.club[0].Length)
	assert.Equal(t, 2, pools.club[1].Length)
	assert.Equal(t, 1, pools.club[2].Length)
	assert.Empty(t, pools.blocks)
	assert.Empty(t, pools.single)
}
