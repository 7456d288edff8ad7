package service

import (
	"context"
	"errors"

	"github.com/utkarshgupta188/tgupload/internal/domain/model"
	"github.com/utkarshgupta188/tgupload/internal/repository"
)

// mockFileRepo — mock репозитория метаданных для тестов сервисов.
// Поведение задаётся функциональными полями.
type mockFileRepo struct {
	insertFn  func(ctx context.Context, params repository.InsertParams) (*model.FileRecord, error)
	listFn    func(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error)
	searchFn  func(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error)
	getByIDFn func(ctx context.Context, id string) (*model.FileRecord, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockFileRepo) Insert(ctx context.Context, params repository.InsertParams) (*model.FileRecord, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, params)
	}
	return nil, errors.New("insertFn не задан")
}

func (m *mockFileRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, errors.New("listFn не задан")
}

func (m *mockFileRepo) Search(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, substring, limit, offset)
	}
	return nil, 0, errors.New("searchFn не задан")
}

func (m *mockFileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, errors.New("getByIDFn не задан")
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("deleteFn не задан")
}

func (m *mockFileRepo) Ping(context.Context) error {
	return nil
}
