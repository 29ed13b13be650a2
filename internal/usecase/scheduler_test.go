package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type recordingProcessor struct {
	days []time.Time
	err  error
}

func (r *recordingProcessor) ProcessDay(_ context.Context, day time.Time) (domain.Report, error) {
	r.days = append(r.days, day)
	return domain.Report{Day: domain.DayKey(day)}, r.err
}

func TestTargetDayUsesLocation(t *testing.T) {
	shanghai := time.FixedZone("UTC+8", 8*60*60)
	trigger := time.Date(2024, time.January, 5, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-04", domain.DayKey(TargetDay(trigger, time.UTC)))
	assert.Equal(t, "2024-01-05", domain.DayKey(TargetDay(trigger, shanghai)))

	newYear := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2023-12-31", domain.DayKey(TargetDay(newYear, time.UTC)))
}

func TestSchedulerProcessesPreviousDay(t *testing.T) {
	driver := &manualDriver{}
	processor := &recordingProcessor{}
	s := NewScheduler(driver, processor, time.UTC, quietLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Date(2024, time.January, 6, 9, 0, 0, 0, time.UTC))
	require.Len(t, processor.days, 1)
	assert.Equal(t, testDay, domain.DayKey(processor.days[0]))

	processor.err = errors.New("boom")
	assert.NotPanics(t, func() { driver.job(time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC)) })
	assert.Len(t, processor.days, 2)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	s := NewScheduler(nil, &recordingProcessor{}, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
