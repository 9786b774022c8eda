package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/serene-scheduler/internal/dto"
	"github.com/noah-isme/serene-scheduler/internal/models"
	"github.com/noah-isme/serene-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type timetableGenerator interface {
	Generate(input models.TimetableInput) (*scheduler.Outcome, error)
}

// GenerationDefaults fill constraints the request leaves at zero.
type GenerationDefaults struct {
	MaxLecturesPerDayTeacher    int
	MaxLecturesPerSubjectPerDay int
	MaxLecturesPerDaySection    int
	LabSessionDuration          int
	LabCapacity                 int
}

// TimetableService validates generation input and runs the scheduler.
type TimetableService struct {
	generator timetableGenerator
	cache     *GenerationCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  GenerationDefaults
}

// NewTimetableService wires the generation pipeline.
func NewTimetableService(generator timetableGenerator, cache *GenerationCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, defaults GenerationDefaults) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if generator == nil {
		generator = scheduler.NewGenerator(logger)
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	return &TimetableService{
		generator: generator,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// Validate checks the request without generating.
func (s *TimetableService) Validate(req dto.TimetableRequest) dto.ValidationReport {
	return s.validate(s.withDefaults(req.Normalize()))
}

// Generate normalises the request, validates it and returns the generated timetable.
func (s *TimetableService) Generate(ctx context.Context, req dto.TimetableRequest) (*models.GenerationResult, error) {
	input := s.withDefaults(req.Normalize())
	report := s.validate(input)
	if !report.Valid {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidInput, "invalid timetable input"), report)
	}

	if cached, ok := s.cache.Lookup(ctx, input); ok {
		cached.ValidationWarnings = report.Warnings
		return cached, nil
	}

	start := time.Now()
	outcome, err := s.generator.Generate(input)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidInput) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate timetable")
	}
	elapsed := time.Since(start)
	s.metrics.ObserveGeneration(elapsed, outcome.Statistics, outcome.Unfulfilled.Total())

	s.logger.Info("timetable generated",
		zap.Int("sections", len(input.Sections)),
		zap.Int("unfulfilled", outcome.Unfulfilled.Total()),
		zap.Int("unscheduled_labs", outcome.UnscheduledLabs),
		zap.Int("relaxation_passes", outcome.RelaxationPasses),
		zap.Duration("elapsed", elapsed))

	result := &models.GenerationResult{
		Timetable:          outcome.Rows,
		Unfulfilled:        outcome.Unfulfilled,
		Suggestions:        outcome.Suggestions,
		Statistics:         outcome.Statistics,
		ValidationWarnings: report.Warnings,
	}
	s.cache.Store(ctx, input, result)
	return result, nil
}

func (s *TimetableService) withDefaults(input models.TimetableInput) models.TimetableInput {
	c := &input.Constraints
	if c.MaxLecturesPerDayTeacher == 0 {
		c.MaxLecturesPerDayTeacher = s.defaults.MaxLecturesPerDayTeacher
	}
	if c.MaxLecturesPerSubjectPerDay == 0 {
		c.MaxLecturesPerSubjectPerDay = s.defaults.MaxLecturesPerSubjectPerDay
	}
	if c.MaxLecturesPerDaySection == 0 {
		c.MaxLecturesPerDaySection = s.defaults.MaxLecturesPerDaySection
	}
	if c.LabSessionDuration == 0 {
		c.LabSessionDuration = s.defaults.LabSessionDuration
	}
	if input.LabCapacity == 0 {
		input.LabCapacity = s.defaults.LabCapacity
	}
	return input
}

func (s *TimetableService) validate(input models.TimetableInput) dto.ValidationReport {
	report := dto.ValidationReport{Errors: []string{}, Warnings: []string{}}

	if err := s.validator.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			report.Errors = append(report.Errors, err.Error())
		}
		for _, fe := range fieldErrs {
			field := fe.Namespace()
			if idx := strings.Index(field, "."); idx >= 0 {
				field = field[idx+1:]
			}
			report.Fields = append(report.Fields, dto.FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
			report.Errors = append(report.Errors, fmt.Sprintf("%s failed rule %s", field, fe.Tag()))
		}
	}

	seen := make(map[string]bool, len(input.Sections))
	for _, section := range input.Sections {
		if section.Name == "" {
			continue
		}
		if seen[section.Name] {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate section name: %s", section.Name))
		}
		seen[section.Name] = true
	}

	if len(input.Slots) > 0 {
		teaching := 0
		for _, slot := range input.Slots {
			if slot != input.Lunch() {
				teaching++
			}
		}
		if teaching == 0 {
			report.Errors = append(report.Errors, "at least one non-lunch time slot must be defined")
		}
	}

	report.Warnings = inputWarnings(input)
	report.Valid = len(report.Errors) == 0
	return report
}

func inputWarnings(input models.TimetableInput) []string {
	warnings := []string{}
	if len(input.Rooms) == 0 {
		warnings = append(warnings, "no rooms defined; theory sessions will have no room")
	}

	var subjects, labs []string
	known := make(map[string]bool)
	for _, section := range input.Sections {
		if section.StudentCount == 0 {
			warnings = append(warnings, fmt.Sprintf("section %s should have a student count", section.Name))
		}
		if len(section.Subjects) == 0 && len(section.LabSubjects) == 0 {
			warnings = append(warnings, fmt.Sprintf("section %s has no subjects defined", section.Name))
		}
		for _, subject := range section.Subjects {
			if !known[subject] {
				known[subject] = true
				subjects = append(subjects, subject)
			}
		}
		for _, lab := range section.LabSubjects {
			if !known[lab] {
				known[lab] = true
				labs = append(labs, lab)
			}
		}
	}

	for _, subject := range append(append([]string(nil), subjects...), labs...) {
		assigned, listed := teachersFor(input, subject)
		switch {
		case !listed:
			warnings = append(warnings, fmt.Sprintf("no teacher assigned to subject: %s", subject))
		case assigned == 0:
			warnings = append(warnings, fmt.Sprintf("subject %q has no valid teachers assigned", subject))
		}
	}
	for _, lab := range labs {
		if len(input.LabRooms[lab]) == 0 && len(input.Labs) == 0 {
			warnings = append(warnings, fmt.Sprintf("no lab rooms assigned to lab subject: %s", lab))
		}
	}
	return warnings
}

func teachersFor(input models.TimetableInput, subject string) (int, bool) {
	theory, inTheory := input.Teachers[subject]
	lab, inLab := input.LabTeachers[subject]
	count := 0
	for _, name := range append(append([]string(nil), theory...), lab...) {
		if strings.TrimSpace(name) != "" {
			count++
		}
	}
	return count, inTheory || inLab
}
