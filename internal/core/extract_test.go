package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ExclusionThenDuplicate(t *testing.T) {
	text := rosterCSV(t,
		roster{"S1", "CS", "Alice", "Smith", "Y1", ""},
		roster{"S2", "Excluded", "Bob", "Jones", "Y1", ""},
		roster{"S1", "CS", "Alice", "Smith", "Y1", "DrX"},
	)

	tests := []struct {
		name           string
		requireNoTutor bool
		wantStats      ExtractStats
	}{
		{
			name:           "tutored students filtered",
			requireNoTutor: true,
			wantStats:      ExtractStats{RowsRead: 3, ExcludedByCourse: 1, ExcludedByTutor: 1, Included: 1},
		},
		{
			name:           "tutored students kept",
			requireNoTutor: false,
			wantStats:      ExtractStats{RowsRead: 3, ExcludedByCourse: 1, Duplicates: 1, Included: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewFilterConfig([]string{"Excluded"}, tt.requireNoTutor)

			rs, stats, err := Extract(csvSource(t, text), cfg, DefaultColumns)
			require.NoError(t, err)

			assert.Equal(t, ResultSet{{
				StudentID:   "S1",
				FirstName:   "Alice",
				LastName:    "Smith",
				CourseTitle: "CS",
				CourseLevel: "Y1",
			}}, rs)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}

func TestExtract_StatsCountFirstFailedCheck(t *testing.T) {
	text := rosterCSV(t,
		roster{"S1", "CS", "Alice", "Smith", "Y1", ""},
		roster{"", "Excluded", "Nobody", "Blank", "Y1", "DrX"},
		roster{"", "CS", "Nobody", "Tutored", "Y1", "DrX"},
		roster{"S1", "CS", "Alice", "Smith", "Y1", "DrY"},
		roster{"", "CS", "Nobody", "Free", "Y1", ""},
		roster{"S1", "Maths", "Alice", "Smith", "Y2", ""},
	)

	_, stats, err := Extract(csvSource(t, text), NewFilterConfig([]string{"Excluded"}, true), DefaultColumns)
	require.NoError(t, err)

	assert.Equal(t, ExtractStats{
		RowsRead:         6,
		ExcludedByCourse: 1,
		ExcludedByTutor:  2,
		BlankID:          1,
		Duplicates:       1,
		Included:         1,
	}, stats)
	assert.Equal(t, stats.RowsRead,
		stats.ExcludedByCourse+stats.ExcludedByTutor+stats.BlankID+stats.Duplicates+stats.Included)
}

func TestExtract_ExcludedRowDoesNotClaimID(t *testing.T) {
	text := rosterCSV(t,
		roster{"S1", "Excluded", "Alice", "Smith", "Y1", ""},
		roster{"S1", "CS", "Alice", "Smith", "Y2", ""},
	)

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig([]string{"Excluded"}, true), DefaultColumns)
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "CS", rs[0].CourseTitle)
	assert.Equal(t, "Y2", rs[0].CourseLevel)
}

func TestExtract_TutorFilteredRowDoesNotClaimID(t *testing.T) {
	text := rosterCSV(t,
		roster{"S1", "CS", "Alice", "Smith", "Y1", "DrX"},
		roster{"S1", "Maths", "Alice", "Smith", "Y1", ""},
	)

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "Maths", rs[0].CourseTitle)
}

func TestExtract_WhitespaceTutorCountsAsNone(t *testing.T) {
	text := rosterCSV(t, roster{"S1", "CS", "Alice", "Smith", "Y1", "   "})

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "   ", rs[0].PersonalTutor, "fields other than the ID are stored as read")
}

func TestExtract_TrimsForMatching(t *testing.T) {
	text := rosterCSV(t,
		roster{" S1 ", " Excluded ", "Alice", "Smith", "Y1", ""},
		roster{" S2", "CS", "Bob", "Jones", "Y1", ""},
		roster{"S2 ", "CS", "Bob", "Jones", "Y1", ""},
	)

	rs, stats, err := Extract(csvSource(t, text), NewFilterConfig([]string{"Excluded"}, true), DefaultColumns)
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "S2", rs[0].StudentID)
	assert.Equal(t, 1, stats.ExcludedByCourse)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestExtract_BlankIDSkipped(t *testing.T) {
	text := rosterCSV(t,
		roster{"", "CS", "No", "Id", "Y1", ""},
		roster{"  ", "CS", "Also", "Blank", "Y1", ""},
		roster{"S3", "CS", "Cara", "Doyle", "Y1", ""},
	)

	rs, stats, err := Extract(csvSource(t, text), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "S3", rs[0].StudentID)
	assert.Equal(t, 2, stats.BlankID)
}

func TestExtract_MissingColumnsReadAsEmpty(t *testing.T) {
	text := "StudentID2,Surname2\nS1,Smith\nS2\n"

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig([]string{""}, true), DefaultColumns)
	require.NoError(t, err)

	// With no course title column every title is "", which is excluded.
	assert.Empty(t, rs)

	rs, _, err = Extract(csvSource(t, text), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	assert.Equal(t, ResultSet{
		{StudentID: "S1", LastName: "Smith"},
		{StudentID: "S2"},
	}, rs)
}

func TestExtract_CustomColumns(t *testing.T) {
	text := "Student Number,Given,Family,Programme,Year,Tutor\n" +
		"100,Ana,Ruiz,History,2,\n"
	cols := ColumnMap{
		StudentID:     "student number",
		FirstName:     "Given",
		LastName:      "Family",
		CourseTitle:   "Programme",
		CourseLevel:   "Year",
		PersonalTutor: "Tutor",
	}

	rs, _, err := Extract(csvSource(t, text), NewFilterConfig(nil, true), cols)
	require.NoError(t, err)

	assert.Equal(t, ResultSet{{
		StudentID:   "100",
		FirstName:   "Ana",
		LastName:    "Ruiz",
		CourseTitle: "History",
		CourseLevel: "2",
	}}, rs)
}

func TestExtract_EmptySource(t *testing.T) {
	rs, stats, err := Extract(csvSource(t, ""), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
	assert.Zero(t, stats.RowsRead)
}

func TestExtract_HeaderOnly(t *testing.T) {
	rs, _, err := Extract(csvSource(t, rosterCSV(t)), NewFilterConfig(nil, true), DefaultColumns)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestExtract_SourceFailure(t *testing.T) {
	idx := MakeHeaderIndex(rosterHeader)
	src := &failingSource{
		rows: []Row{NewRow(idx, []string{"S1", "CS", "A", "B", "Y1", ""})},
		err:  errDiskGone,
	}

	rs, stats, err := Extract(src, NewFilterConfig(nil, true), DefaultColumns)
	require.Error(t, err)
	assert.Nil(t, rs)
	assert.Equal(t, 1, stats.RowsRead)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, errDiskGone))
}

func TestExtract_FreshStatePerCall(t *testing.T) {
	text := rosterCSV(t, roster{"S1", "CS", "Alice", "Smith", "Y1", ""})
	cfg := NewFilterConfig(nil, true)

	for i := 0; i < 2; i++ {
		rs, _, err := Extract(csvSource(t, text), cfg, DefaultColumns)
		require.NoError(t, err)
		assert.Len(t, rs, 1, "run %d", i)
	}
}

func TestNewFilterConfig_CopiesCourses(t *testing.T) {
	courses := []string{"Art", "Music"}
	cfg := NewFilterConfig(courses, false)
	courses[0] = "Drama"

	assert.True(t, cfg.Excludes("Art"))
	assert.False(t, cfg.Excludes("Drama"))
	assert.Equal(t, []string{"Art", "Music"}, cfg.ExcludedCourses())
}

func TestFilterConfig_ZeroValue(t *testing.T) {
	var cfg FilterConfig
	assert.False(t, cfg.Excludes("Art"))
	assert.Empty(t, cfg.ExcludedCourses())
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{" StudentID2 ", "Surname2", "studentid2"})

	assert.Equal(t, 0, idx["studentid2"], "first duplicate wins")
	assert.Equal(t, 1, idx["surname2"])
}

func TestColumnMap_WithDefaults(t *testing.T) {
	got := ColumnMap{StudentID: "Number", LastName: "  "}.WithDefaults()

	assert.Equal(t, "Number", got.StudentID)
	assert.Equal(t, DefaultColumns.LastName, got.LastName)
	assert.Equal(t, DefaultColumns.PersonalTutor, got.PersonalTutor)
	assert.Equal(t, "Number", got.Header(FieldStudentID))
	assert.Equal(t, "", got.Header(Field(99)))
}
