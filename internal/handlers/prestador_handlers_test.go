package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fatecitu/cadastro-prestador/internal/models"
	"github.com/fatecitu/cadastro-prestador/internal/repository"
	"github.com/fatecitu/cadastro-prestador/internal/validation"
)

const validCNPJ = "11222333000181"

/*
RODAR TODOS OS TESTES:

go test -v ./internal/handlers -count=1
*/

func newTestHandler(rm *repoMock) *PrestadorHandler {
	return NewPrestadorHandler(rm, &pubMock{}, 0)
}

func corpoValido() *bytes.Buffer {
	return bytes.NewBufferString(`{
		"cnpj": "` + validCNPJ + `",
		"razao_social": "ACME Serviços Ltda.",
		"cnae_fiscal": 6201501,
		"data_inicio_atividade": "2020-01-15"
	}`)
}

func decodeEnvelope(t *testing.T, body []byte) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("envelope inválido: %v\nbody=%s", err, body)
	}
	return env
}

// 1) GET /api/prestadores (lista ordenada)

func TestPrestadores_List(t *testing.T) {
	rm := &repoMock{
		FindAllFn: func(_ context.Context) ([]models.Prestador, error) {
			// o repositório devolve ordenado por razao_social
			return []models.Prestador{
				{CNPJ: "11111111111111", RazaoSocial: "Alfa"},
				{CNPJ: "22222222222222", RazaoSocial: "Beta"},
				{CNPJ: "33333333333333", RazaoSocial: "Gama"},
			}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores", nil)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var got []models.Prestador
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if len(got) != 3 || got[0].RazaoSocial != "Alfa" || got[1].RazaoSocial != "Beta" || got[2].RazaoSocial != "Gama" {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

func TestPrestadores_List_RepoError(t *testing.T) {
	rm := &repoMock{
		FindAllFn: func(_ context.Context) ([]models.Prestador, error) {
			return nil, errors.New("boom")
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores", nil)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusInternalServerError)
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Msg != "Erro: boom" {
		t.Fatalf("envelope: %#v", env)
	}
}

func TestPrestadores_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&repoMock{})
	req := httptest.NewRequest(http.MethodDelete, "/api/prestadores", nil)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusMethodNotAllowed)
	}
}

// 2) POST /api/prestadores (create)

func TestPrestadores_Create_Valid(t *testing.T) {
	oid := primitive.NewObjectID()
	rm := &repoMock{
		InsertFn: func(_ context.Context, p *models.Prestador) (*repository.InsertResult, error) {
			if p.CNPJ != validCNPJ || p.RazaoSocial == "" {
				t.Fatalf("campos obrigatórios não chegaram no repo: %#v", p)
			}
			if !p.ID.IsZero() {
				t.Fatal("create não pode levar _id do cliente")
			}
			return &repository.InsertResult{Acknowledged: true, InsertedID: oid.Hex()}, nil
		},
	}
	published := false
	h := newTestHandler(rm)
	h.Pub = &pubMock{PublishFn: func(_ context.Context, _ string, _ amqp091.Table) error {
		published = true
		return nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", corpoValido())
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var got repository.InsertResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if !got.Acknowledged || got.InsertedID != oid.Hex() {
		t.Fatalf("payload inesperado: %#v", got)
	}
	if !published {
		t.Fatal("evento de cadastro não publicado")
	}
}

func TestPrestadores_Create_InvalidJSON(t *testing.T) {
	h := newTestHandler(&repoMock{})
	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", bytes.NewBufferString(`{`))
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusBadRequest)
	}
}

func TestPrestadores_Create_ValidationErrorsOrdered(t *testing.T) {
	h := newTestHandler(&repoMock{})

	body := bytes.NewBufferString(`{"cnpj":"123","razao_social":"AB","cnae_fiscal":"abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", body)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	want := []string{
		validation.MsgCNPJTamanho,
		validation.MsgRazaoMuitoCurta,
		validation.MsgCNAENumerico,
	}
	if len(env.Errors) != len(want) {
		t.Fatalf("errors: %#v", env.Errors)
	}
	for i, m := range want {
		if env.Errors[i].Msg != m {
			t.Fatalf("ordem dos erros: %#v", env.Errors)
		}
	}
}

func TestPrestadores_Create_DuplicateCNPJ(t *testing.T) {
	rm := &repoMock{
		FindByCNPJFn: func(_ context.Context, cnpj string) ([]models.Prestador, error) {
			return []models.Prestador{{ID: primitive.NewObjectID(), CNPJ: cnpj}}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", corpoValido())
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Param != "cnpj" {
		t.Fatalf("envelope: %#v", env)
	}
}

// corrida: a validação passou mas o índice único barrou o insert
func TestPrestadores_Create_RaceDuplicateOnInsert(t *testing.T) {
	rm := &repoMock{
		InsertFn: func(_ context.Context, _ *models.Prestador) (*repository.InsertResult, error) {
			return nil, repository.ErrDuplicateCNPJ
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", corpoValido())
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Msg != validation.DuplicateCNPJ(validCNPJ).Msg {
		t.Fatalf("envelope: %#v", env)
	}
}

// falha de consulta durante a validação não é rejeição: 500
func TestPrestadores_Create_ValidationQueryFailure(t *testing.T) {
	rm := &repoMock{
		FindByCNPJFn: func(_ context.Context, _ string) ([]models.Prestador, error) {
			return nil, errors.New("mongo fora do ar")
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodPost, "/api/prestadores", corpoValido())
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

// 3) PUT /api/prestadores (update com _id no corpo)

func TestPrestadores_Update_Valid(t *testing.T) {
	oid := primitive.NewObjectID()
	rm := &repoMock{
		FindByCNPJFn: func(_ context.Context, cnpj string) ([]models.Prestador, error) {
			// o próprio documento com o mesmo cnpj não é duplicidade
			return []models.Prestador{{ID: oid, CNPJ: cnpj}}, nil
		},
		UpdateSetFn: func(_ context.Context, id primitive.ObjectID, p *models.Prestador) (*repository.UpdateResult, error) {
			if id != oid {
				t.Fatalf("id inesperado: %s", id.Hex())
			}
			if !p.ID.IsZero() {
				t.Fatal("_id deveria ter sido removido do corpo")
			}
			return &repository.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
		},
	}
	h := newTestHandler(rm)

	body := bytes.NewBufferString(`{
		"_id": "` + oid.Hex() + `",
		"cnpj": "` + validCNPJ + `",
		"razao_social": "ACME Serviços Ltda.",
		"cnae_fiscal": 6201501
	}`)
	req := httptest.NewRequest(http.MethodPut, "/api/prestadores", body)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var got repository.UpdateResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if got.MatchedCount != 1 {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

func TestPrestadores_Update_SemID(t *testing.T) {
	h := newTestHandler(&repoMock{})

	req := httptest.NewRequest(http.MethodPut, "/api/prestadores", corpoValido())
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Param != "_id" {
		t.Fatalf("envelope: %#v", env)
	}
}

// matchedCount zero vira 404 explícito, não um 201 silencioso
func TestPrestadores_Update_NoMatch(t *testing.T) {
	rm := &repoMock{
		UpdateSetFn: func(_ context.Context, _ primitive.ObjectID, _ *models.Prestador) (*repository.UpdateResult, error) {
			return &repository.UpdateResult{Acknowledged: true, MatchedCount: 0, ModifiedCount: 0}, nil
		},
	}
	h := newTestHandler(rm)

	body := bytes.NewBufferString(`{
		"_id": "` + primitive.NewObjectID().Hex() + `",
		"cnpj": "` + validCNPJ + `",
		"razao_social": "ACME Serviços",
		"cnae_fiscal": 6201501
	}`)
	req := httptest.NewRequest(http.MethodPut, "/api/prestadores", body)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Param != "_id" {
		t.Fatalf("envelope: %#v", env)
	}
}

func TestPrestadores_Update_CNPJDeOutroDocumento(t *testing.T) {
	rm := &repoMock{
		FindByCNPJFn: func(_ context.Context, cnpj string) ([]models.Prestador, error) {
			return []models.Prestador{{ID: primitive.NewObjectID(), CNPJ: cnpj}}, nil
		},
	}
	h := newTestHandler(rm)

	body := bytes.NewBufferString(`{
		"_id": "` + primitive.NewObjectID().Hex() + `",
		"cnpj": "` + validCNPJ + `",
		"razao_social": "ACME Serviços",
		"cnae_fiscal": 6201501
	}`)
	req := httptest.NewRequest(http.MethodPut, "/api/prestadores", body)
	rr := httptest.NewRecorder()
	h.Prestadores(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// 4) GET /api/prestadores/id/{id}

func TestPrestadorSubroutes_GetByID_Found(t *testing.T) {
	oid := primitive.NewObjectID()
	rm := &repoMock{
		FindByIDFn: func(_ context.Context, id string) ([]models.Prestador, error) {
			if id != oid.Hex() {
				t.Fatalf("id inesperado: %s", id)
			}
			return []models.Prestador{{ID: oid, CNPJ: validCNPJ, RazaoSocial: "ACME"}}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores/id/"+oid.Hex(), nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var got []models.Prestador
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if len(got) != 1 || got[0].RazaoSocial != "ACME" {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

// id que não existe: 200 com array vazio, não 404
func TestPrestadorSubroutes_GetByID_EmptyIsOK(t *testing.T) {
	rm := &repoMock{
		FindByIDFn: func(_ context.Context, _ string) ([]models.Prestador, error) {
			return []models.Prestador{}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores/id/"+primitive.NewObjectID().Hex(), nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("body=%q want=[]", body)
	}
}

func TestPrestadorSubroutes_GetByID_RepoError(t *testing.T) {
	rm := &repoMock{
		FindByIDFn: func(_ context.Context, id string) ([]models.Prestador, error) {
			return nil, repository.ErrInvalidID
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores/id/nao-e-hex", nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

// 5) GET /api/prestadores/razao/{razao}

func TestPrestadorSubroutes_GetByRazao(t *testing.T) {
	rm := &repoMock{
		FindByRazaoFn: func(_ context.Context, razao string) ([]models.Prestador, error) {
			if razao != "alf" {
				t.Fatalf("razao inesperada: %q", razao)
			}
			return []models.Prestador{{CNPJ: validCNPJ, RazaoSocial: "Alfacorp"}}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodGet, "/api/prestadores/razao/alf", nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var got []models.Prestador
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if len(got) != 1 || got[0].RazaoSocial != "Alfacorp" {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

// 6) DELETE /api/prestadores/{id}

func TestPrestadorSubroutes_Delete_OK(t *testing.T) {
	oid := primitive.NewObjectID()
	rm := &repoMock{
		DeleteFn: func(_ context.Context, id string) (*repository.DeleteResult, error) {
			if id != oid.Hex() {
				t.Fatalf("id inesperado: %s", id)
			}
			return &repository.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodDelete, "/api/prestadores/"+oid.Hex(), nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	var got repository.DeleteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if got.DeletedCount != 1 {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

// id que não corresponde a nada: 202 com deletedCount 0, não erro
func TestPrestadorSubroutes_Delete_ZeroMatches(t *testing.T) {
	rm := &repoMock{
		DeleteFn: func(_ context.Context, _ string) (*repository.DeleteResult, error) {
			return &repository.DeleteResult{Acknowledged: true, DeletedCount: 0}, nil
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodDelete, "/api/prestadores/"+primitive.NewObjectID().Hex(), nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	var got repository.DeleteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if got.DeletedCount != 0 {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

func TestPrestadorSubroutes_Delete_StoreError(t *testing.T) {
	rm := &repoMock{
		DeleteFn: func(_ context.Context, _ string) (*repository.DeleteResult, error) {
			return nil, repository.ErrInvalidID
		},
	}
	h := newTestHandler(rm)

	req := httptest.NewRequest(http.MethodDelete, "/api/prestadores/xx", nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// 7) rotas auxiliares

func TestAPIInfo(t *testing.T) {
	h := newTestHandler(&repoMock{})
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rr := httptest.NewRecorder()
	h.APIInfo(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusOK)
	}
	var got map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if got["version"] != apiVersion || got["message"] == "" {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

func TestNotFound_EnvelopeComRota(t *testing.T) {
	h := newTestHandler(&repoMock{})
	req := httptest.NewRequest(http.MethodGet, "/api/outra-coisa", nil)
	rr := httptest.NewRecorder()
	h.NotFound(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusNotFound)
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if len(env.Errors) != 1 || env.Errors[0].Value != "/api/outra-coisa" {
		t.Fatalf("envelope: %#v", env)
	}
}

func TestPrestadorSubroutes_RotaDesconhecida(t *testing.T) {
	h := newTestHandler(&repoMock{})
	req := httptest.NewRequest(http.MethodGet, "/api/prestadores/id/1/extra", nil)
	rr := httptest.NewRecorder()
	h.PrestadorSubroutes(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d body=%s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
