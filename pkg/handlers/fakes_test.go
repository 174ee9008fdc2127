package handlers

import (
	"context"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

type fakeRecords struct {
	count int64
	err   error
	src   models.Source
}

func (f *fakeRecords) Count(_ context.Context, src models.Source) (int64, error) {
	f.src = src
	return f.count, f.err
}

type fakeRuns struct {
	run *models.ValidationRun
	err error
}

func (f *fakeRuns) LatestRun(_ context.Context) (*models.ValidationRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.run == nil {
		return nil, apperrors.ErrNotFound
	}
	return f.run, nil
}
