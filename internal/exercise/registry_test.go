package exercise

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{"4-7-8", "box", "main", "wait"}, r.List())

	for _, id := range r.List() {
		def, err := r.Get(id)
		require.NoError(t, err)
		assert.NoError(t, def.Validate(), "built-in %s should validate", id)
		_, mismatch := def.CycleMismatch()
		assert.False(t, mismatch, "built-in %s cycle should match its phases", id)
	}

	descriptions := r.ListWithDescriptions()
	assert.Len(t, descriptions, 4)
	assert.NotEmpty(t, descriptions["4-7-8"])
}

func TestDefaultExercise(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	def, err := r.Get(DefaultID)
	require.NoError(t, err)
	assert.Equal(t, 19.0, def.CycleDurationSeconds)
	require.Len(t, def.Phases, 3)
	assert.Equal(t, "inhale", def.Phases[0].Name)
	assert.Equal(t, 4.0, def.Phases[0].DurationSeconds)
	assert.Equal(t, "hold", def.Phases[1].Name)
	assert.Equal(t, 7.0, def.Phases[1].DurationSeconds)
	assert.Equal(t, "exhale", def.Phases[2].Name)
	assert.Equal(t, 8.0, def.Phases[2].DurationSeconds)

	require.NotNil(t, def.Audio)
	assert.Equal(t, 0.3, def.Audio.Background.Volume)
	assert.Equal(t, 0.4, def.Audio.Instructions.Volume)
}

func TestGetResolvesAliases(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	def, err := r.Get("Exercise478")
	require.NoError(t, err)
	assert.Equal(t, DefaultID, def.ID)

	_, err = r.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExerciseFallsBackOnUnknownID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	r, err := NewBuiltinRegistry()
	require.NoError(t, err)
	hook.Reset()

	def, err := r.GetExercise("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, DefaultID, def.ID)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "nonexistent", hook.LastEntry().Data["exercise"])
}

func TestGetExerciseFallsBackOnInvalidDefinition(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	require.NoError(t, r.Register(&Definition{
		ID:                   "broken",
		CycleDurationSeconds: 10,
		Phases:               []Phase{{Name: "inhale", DurationSeconds: -1}},
	}))

	def, fallback, err := r.Resolve("broken")
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, DefaultID, def.ID)

	_, err = r.Get("broken")
	assert.NoError(t, err, "strict lookup still finds the stored definition")
}

func TestGetExerciseWithoutDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Definition{
		ID:                   "box",
		CycleDurationSeconds: 4,
		Phases:               []Phase{{Name: "in", DurationSeconds: 4}},
	}))

	def, err := r.GetExercise("box")
	require.NoError(t, err)
	assert.Equal(t, "box", def.ID)

	_, err = r.GetExercise("nonexistent")
	assert.ErrorIs(t, err, ErrDefaultMissing)
}

func TestCycleMismatchIsOnlyAWarning(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	r := NewRegistry()
	def := &Definition{
		ID:                   "odd",
		CycleDurationSeconds: 12,
		Phases: []Phase{
			{Name: "inhale", DurationSeconds: 4},
			{Name: "exhale", DurationSeconds: 6},
		},
	}
	require.NoError(t, r.Register(def))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)

	sum, mismatch := def.CycleMismatch()
	assert.True(t, mismatch)
	assert.Equal(t, 10.0, sum)
	assert.NoError(t, def.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Definition {
		return &Definition{
			ID:                   "x",
			CycleDurationSeconds: 4,
			Phases:               []Phase{{Name: "in", DurationSeconds: 4}},
			Elements: []Element{{
				Name:   "circle",
				Times:  []float64{0, 0.5, 1},
				Scales: []float64{1, 2, 1},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(d *Definition)
		field  string
	}{
		{"missing id", func(d *Definition) { d.ID = "" }, "id"},
		{"no phases", func(d *Definition) { d.Phases = nil }, "phases"},
		{"unnamed phase", func(d *Definition) { d.Phases[0].Name = "" }, "phases[0].name"},
		{"zero duration", func(d *Definition) { d.Phases[0].DurationSeconds = 0 }, "phases[0].duration_seconds"},
		{"zero cycle", func(d *Definition) { d.CycleDurationSeconds = 0 }, "cycle_duration_seconds"},
		{"times not from zero", func(d *Definition) { d.Elements[0].Times[0] = 0.1 }, "elements[0].times"},
		{"times decreasing", func(d *Definition) { d.Elements[0].Times[2] = 0.4 }, "elements[0].times"},
		{"times beyond one", func(d *Definition) { d.Elements[0].Times[2] = 1.5 }, "elements[0].times"},
		{"scale count", func(d *Definition) { d.Elements[0].Scales = []float64{1} }, "elements[0].scales"},
		{"opacity count", func(d *Definition) { d.Elements[0].Opacities = []float64{1} }, "elements[0].opacities"},
		{"negative delay", func(d *Definition) { d.Elements[0].DelaySeconds = -1 }, "elements[0].delay_seconds"},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSameTiming(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	a, _ := r.Get("4-7-8")
	b, _ := r.Get("box")
	assert.True(t, a.SameTiming(a))
	assert.False(t, a.SameTiming(b))

	c := *a
	c.Phases = append([]Phase(nil), a.Phases...)
	c.Phases[1].DurationSeconds = 6
	assert.False(t, a.SameTiming(&c))

	var nilDef *Definition
	assert.False(t, nilDef.SameTiming(a))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	content := `id: "calm"
name: "Calm"
cycle_duration_seconds: 10
phases:
  - {name: inhale, duration_seconds: 4}
  - {name: exhale, duration_seconds: 6}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calm.yaml"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFromDir(dir))
	assert.Equal(t, []string{"calm"}, r.List())

	def, err := r.Get("calm")
	require.NoError(t, err)
	assert.Equal(t, 10.0, def.CycleDurationSeconds)
}

func TestLoadFromFSRejectsMalformedYAML(t *testing.T) {
	fsys := fstest.MapFS{
		"ex/bad.yaml": &fstest.MapFile{Data: []byte("id: [unterminated")},
	}
	r := NewRegistry()
	err := r.LoadFromFS(fsys, "ex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ex/bad.yaml")
}
