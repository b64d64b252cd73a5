package handlers

import (
	"context"
	"errors"

	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fatecitu/cadastro-prestador/internal/models"
	"github.com/fatecitu/cadastro-prestador/internal/repository"
)

type repoMock struct {
	FindAllFn     func(ctx context.Context) ([]models.Prestador, error)
	FindByIDFn    func(ctx context.Context, id string) ([]models.Prestador, error)
	FindByCNPJFn  func(ctx context.Context, cnpj string) ([]models.Prestador, error)
	FindByRazaoFn func(ctx context.Context, razao string) ([]models.Prestador, error)
	InsertFn      func(ctx context.Context, p *models.Prestador) (*repository.InsertResult, error)
	UpdateSetFn   func(ctx context.Context, id primitive.ObjectID, p *models.Prestador) (*repository.UpdateResult, error)
	DeleteFn      func(ctx context.Context, id string) (*repository.DeleteResult, error)
}

func (m *repoMock) FindAll(ctx context.Context) ([]models.Prestador, error) {
	if m.FindAllFn == nil {
		return nil, errors.New("FindAllFn not set")
	}
	return m.FindAllFn(ctx)
}
func (m *repoMock) FindByID(ctx context.Context, id string) ([]models.Prestador, error) {
	if m.FindByIDFn == nil {
		return nil, errors.New("FindByIDFn not set")
	}
	return m.FindByIDFn(ctx, id)
}
func (m *repoMock) FindByCNPJ(ctx context.Context, cnpj string) ([]models.Prestador, error) {
	if m.FindByCNPJFn == nil {
		// a regra de unicidade consulta sempre; sem stub = coleção vazia
		return nil, nil
	}
	return m.FindByCNPJFn(ctx, cnpj)
}
func (m *repoMock) FindByRazao(ctx context.Context, razao string) ([]models.Prestador, error) {
	if m.FindByRazaoFn == nil {
		return nil, errors.New("FindByRazaoFn not set")
	}
	return m.FindByRazaoFn(ctx, razao)
}
func (m *repoMock) Insert(ctx context.Context, p *models.Prestador) (*repository.InsertResult, error) {
	if m.InsertFn == nil {
		return nil, errors.New("InsertFn not set")
	}
	return m.InsertFn(ctx, p)
}
func (m *repoMock) UpdateSet(ctx context.Context, id primitive.ObjectID, p *models.Prestador) (*repository.UpdateResult, error) {
	if m.UpdateSetFn == nil {
		return nil, errors.New("UpdateSetFn not set")
	}
	return m.UpdateSetFn(ctx, id, p)
}
func (m *repoMock) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	if m.DeleteFn == nil {
		return nil, errors.New("DeleteFn not set")
	}
	return m.DeleteFn(ctx, id)
}

type pubMock struct {
	PublishFn func(ctx context.Context, body string, headers amqp091.Table) error
	CloseFn   func() error
}

func (p *pubMock) Publish(ctx context.Context, body string, headers amqp091.Table) error {
	if p.PublishFn == nil {
		return nil
	}
	return p.PublishFn(ctx, body, headers)
}
func (p *pubMock) Close() error {
	if p.CloseFn == nil {
		return nil
	}
	return p.CloseFn()
}
