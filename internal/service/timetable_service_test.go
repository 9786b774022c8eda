package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type generatorStub struct {
	calls int
	input models.TimetableInput
	err   error
}

func (g *generatorStub) Generate(input models.TimetableInput) (*scheduler.Outcome, error) {
	g.calls++
	g.input = input
	if g.err != nil {
		return nil, g.err
	}
	return &scheduler.Outcome{
		Rows:        []models.TimetableRow{mondayRow(input.Sections[0].Name, "P1", "Maths", "Alice", "R1")},
		Unfulfilled: models.Unfulfilled{},
		Suggestions: models.Suggestions{},
	}, nil
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func generationRequest() dto.TimetableRequest {
	return dto.TimetableRequest{TimetableInput: models.TimetableInput{
		Sections: []models.Section{{Name: "S", StudentCount: 40, Subjects: []string{"Maths"}}},
		Days:     []string{"Mon"},
		Slots:    []string{"P1", "P2"},
		Teachers: map[string][]string{"Maths": {"Alice"}},
		Rooms:    []string{"R1"},
	}}
}

func newTimetableServiceForTest(generator timetableGenerator, cache *GenerationCache) *TimetableService {
	return NewTimetableService(generator, cache, nil, nil, zap.NewNop(), GenerationDefaults{
		MaxLecturesPerDayTeacher:    5,
		MaxLecturesPerSubjectPerDay: 2,
		MaxLecturesPerDaySection:    6,
		LabSessionDuration:          2,
		LabCapacity:                 30,
	})
}

func TestTimetableServiceValidateReportsFieldErrors(t *testing.T) {
	svc := newTimetableServiceForTest(&generatorStub{}, nil)

	report := svc.Validate(dto.TimetableRequest{TimetableInput: models.TimetableInput{
		Sections: []models.Section{{Name: "S"}},
		Slots:    []string{"P1"},
	}})
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Fields)
	assert.Equal(t, dto.FieldError{Field: "days", Rule: "required"}, report.Fields[0])
}

func TestTimetableServiceValidateRejectsDuplicatesAndLunchOnly(t *testing.T) {
	svc := newTimetableServiceForTest(&generatorStub{}, nil)
	req := generationRequest()
	req.Sections = append(req.Sections, models.Section{Name: "S", Subjects: []string{"Maths"}})
	req.Slots = []string{models.DefaultLunchSlot}

	report := svc.Validate(req)
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, "duplicate section name: S")
	assert.Contains(t, report.Errors, "at least one non-lunch time slot must be defined")
}

func TestTimetableServiceValidateWarnings(t *testing.T) {
	svc := newTimetableServiceForTest(&generatorStub{}, nil)
	req := dto.TimetableRequest{TimetableInput: models.TimetableInput{
		Sections: []models.Section{
			{Name: "S", Subjects: []string{"Maths", "Art"}, LabSubjects: []string{"Chem Lab"}},
			{Name: "T"},
		},
		Days:        []string{"Mon"},
		Slots:       []string{"P1"},
		Teachers:    map[string][]string{"Maths": {"Alice"}, "Art": {" "}},
		LabTeachers: map[string][]string{"Chem Lab": {"Carol"}},
	}}

	report := svc.Validate(req)
	assert.True(t, report.Valid)
	assert.Equal(t, []string{
		"no rooms defined; theory sessions will have no room",
		"section S should have a student count",
		"section T should have a student count",
		"section T has no subjects defined",
		`subject "Art" has no valid teachers assigned`,
		"no lab rooms assigned to lab subject: Chem Lab",
	}, report.Warnings)
}

func TestTimetableServiceGenerateAppliesDefaultsAndClasses(t *testing.T) {
	generator := &generatorStub{}
	svc := newTimetableServiceForTest(generator, nil)
	req := generationRequest()
	req.Sections = nil
	req.Classes = []dto.ClassInput{{
		Name:     "CSE",
		Subjects: []string{"Maths"},
		Sections: []dto.SectionInput{{Name: "A", StudentCount: 60}, {Name: "B", StudentCount: 55}},
	}}
	req.Constraints.MaxLecturesPerDayTeacher = 3

	result, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Timetable, 1)
	assert.Equal(t, "CSE - A", result.Timetable[0].Section)

	require.Len(t, generator.input.Sections, 2)
	assert.Equal(t, "CSE - B", generator.input.Sections[1].Name)
	assert.Equal(t, "CSE", generator.input.Sections[1].ClassName)
	assert.Equal(t, 3, generator.input.Constraints.MaxLecturesPerDayTeacher)
	assert.Equal(t, 2, generator.input.Constraints.MaxLecturesPerSubjectPerDay)
	assert.Equal(t, 30, generator.input.LabCapacity)
}

func TestTimetableServiceGenerateInvalidInput(t *testing.T) {
	generator := &generatorStub{}
	svc := newTimetableServiceForTest(generator, nil)
	req := generationRequest()
	req.Days = nil

	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, appErr.Code)
	report, ok := appErr.Details.(dto.ValidationReport)
	require.True(t, ok)
	assert.False(t, report.Valid)
	assert.Zero(t, generator.calls)
}

func TestTimetableServiceGenerateMapsGeneratorErrors(t *testing.T) {
	generator := &generatorStub{err: fmt.Errorf("%w: no teaching slots", scheduler.ErrInvalidInput)}
	svc := newTimetableServiceForTest(generator, nil)

	_, err := svc.Generate(context.Background(), generationRequest())
	assert.Equal(t, appErrors.ErrInvalidInput.Code, appErrors.FromError(err).Code)

	generator.err = errors.New("boom")
	_, err = svc.Generate(context.Background(), generationRequest())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateUsesCache(t *testing.T) {
	generator := &generatorStub{}
	repo := newMemoryCacheRepo()
	cache := NewGenerationCache(repo, nil, time.Minute, zap.NewNop(), true)
	svc := newTimetableServiceForTest(generator, cache)

	first, err := svc.Generate(context.Background(), generationRequest())
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), generationRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, first.Timetable, second.Timetable)
	assert.Len(t, repo.entries, 1)

	other := generationRequest()
	other.Rooms = []string{"R2"}
	_, err = svc.Generate(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, generator.calls)

	require.NoError(t, cache.Invalidate(context.Background()))
	assert.Empty(t, repo.entries)
	assert.Len(t, repo.deleted, 2)
}

func TestGenerationCacheDisabled(t *testing.T) {
	var nilCache *GenerationCache
	assert.False(t, nilCache.Enabled())
	assert.False(t, NewGenerationCache(nil, nil, 0, nil, true).Enabled())

	repo := newMemoryCacheRepo()
	cache := NewGenerationCache(repo, nil, 0, nil, false)
	cache.Store(context.Background(), generationRequest().TimetableInput, &models.GenerationResult{})
	_, hit := cache.Lookup(context.Background(), generationRequest().TimetableInput)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)
}

func TestGenerationCacheKeyIsStable(t *testing.T) {
	cache := NewGenerationCache(newMemoryCacheRepo(), nil, 0, nil, true)
	first, err := cache.Key(generationRequest().TimetableInput)
	require.NoError(t, err)
	second, err := cache.Key(generationRequest().TimetableInput)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "timetable:generate:"))
}
