package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidProgram(t *testing.T) {
	p, err := Load("testdata/program.yaml")
	require.NoError(t, err)

	assert.Equal(t, "kigali baseline", p.Name)
	assert.Equal(t, 1, p.StartYear)
	assert.Equal(t, 10, p.EndYear)
	assert.Equal(t, 2, p.Trials)
	require.Len(t, p.Scenarios, 2)

	bau := p.Scenarios[0]
	assert.Equal(t, "business as usual", bau.Name)
	assert.Equal(t, "default", bau.Stanza)
	require.Len(t, bau.Commands, 4)
	assert.Equal(t, OpEnable, bau.Commands[0].Op)
	assert.Equal(t, "domestic", bau.Commands[0].Stream)

	phasedown := p.Scenarios[1]
	assert.Equal(t, "accelerated phasedown", phasedown.Name)

	cap := phasedown.Commands[len(phasedown.Commands)-1]
	assert.Equal(t, OpCap, cap.Op)
	require.NotNil(t, cap.Years)
	require.NotNil(t, cap.Years.Min)
	assert.Equal(t, 3, *cap.Years.Min)
	assert.Nil(t, cap.Years.Max)
}

func TestParse_DefaultsTrialsAndStanza(t *testing.T) {
	p, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarios:
  - name: baseline
    commands:
      - op: enable
        application: commercial refrigeration
        substance: R-404A
        stream: domestic
`))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Trials)
	assert.Equal(t, "default", p.Scenarios[0].Stanza)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarioz:
  - name: baseline
`))
	require.Error(t, err)
	assert.True(t, IsBadYAMLError(err))
}

func TestParse_EmptyRejected(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.True(t, IsBadYAMLError(err))
}

func TestParse_CollectsAllViolations(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 5
endYear: 2
trials: -1
scenarios:
  - name: broken
    commands:
      - op: set
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
        value: not a number
      - op: teleport
        application: domestic refrigeration
        substance: HFC-134a
`))
	require.Error(t, err)
	require.True(t, IsInvalidProgramError(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Violations, 4)
	assert.Contains(t, ce.Error(), "endYear 2 is before startYear 5")
	assert.Contains(t, ce.Error(), "trials must be at least 1")
	assert.Contains(t, ce.Error(), `unknown op "teleport"`)
}

func TestParse_MissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarios:
  - name: baseline
    commands:
      - op: recharge
        application: domestic refrigeration
        substance: HFC-134a
      - op: replace
        application: domestic refrigeration
        substance: HFC-134a
        stream: sales
        value: 10 %
`))
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), `op "recharge" requires value`)
	assert.Contains(t, ce.Error(), `op "recharge" requires intensity`)
	assert.Contains(t, ce.Error(), `op "replace" requires a destination substance`)
}

func TestParse_BadStageRejected(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarios:
  - name: baseline
    commands:
      - op: recover
        application: domestic refrigeration
        substance: HFC-134a
        value: 20 %
        yield: 90 %
        stage: teardown
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `stage must be "recharge" or "eol"`)
}

func TestParse_DuplicateScenarioNames(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarios:
  - name: baseline
    commands: []
  - name: baseline
    commands: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate scenario name "baseline"`)
}

func TestYearRange_ScalarForm(t *testing.T) {
	p, err := Parse([]byte(`
startYear: 1
endYear: 5
scenarios:
  - name: baseline
    commands:
      - op: enable
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
        years: 3
`))
	require.NoError(t, err)

	ym := p.Scenarios[0].Commands[0].Years.Matcher()
	assert.False(t, ym.Matches(2))
	assert.True(t, ym.Matches(3))
	assert.False(t, ym.Matches(4))
}

func TestYearRange_BoundedForm(t *testing.T) {
	p, err := Parse([]byte(`
startYear: 1
endYear: 10
scenarios:
  - name: baseline
    commands:
      - op: enable
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
        years: {min: 2, max: 4}
`))
	require.NoError(t, err)

	ym := p.Scenarios[0].Commands[0].Years.Matcher()
	assert.False(t, ym.Matches(1))
	assert.True(t, ym.Matches(2))
	assert.True(t, ym.Matches(4))
	assert.False(t, ym.Matches(5))
}

func TestYearRange_InvertedBoundsRejected(t *testing.T) {
	_, err := Parse([]byte(`
startYear: 1
endYear: 10
scenarios:
  - name: baseline
    commands:
      - op: enable
        application: domestic refrigeration
        substance: HFC-134a
        stream: domestic
        years: {min: 7, max: 3}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "years min 7 exceeds max 3")
}

func TestYearRange_NilMatchesEveryYear(t *testing.T) {
	var r *YearRange
	ym := r.Matcher()
	assert.True(t, ym.Matches(1))
	assert.True(t, ym.Matches(9999))
}

func TestCommand_RecoveryStage(t *testing.T) {
	assert.Equal(t, "recharge", Command{}.RecoveryStage().String())
	assert.Equal(t, "eol", Command{Stage: "eol"}.RecoveryStage().String())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeUnreadable, ce.Code)
}
