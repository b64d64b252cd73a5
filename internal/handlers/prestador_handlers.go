package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fatecitu/cadastro-prestador/internal/models"
	"github.com/fatecitu/cadastro-prestador/internal/repository"
	"github.com/fatecitu/cadastro-prestador/internal/utils"
	"github.com/fatecitu/cadastro-prestador/internal/validation"
)

const (
	apiMessage = "API Fatec Mobile 100% funcional🖐"
	apiVersion = "1.0.0"
)

type Repository interface {
	FindAll(ctx context.Context) ([]models.Prestador, error)
	FindByID(ctx context.Context, id string) ([]models.Prestador, error)
	FindByCNPJ(ctx context.Context, cnpj string) ([]models.Prestador, error)
	FindByRazao(ctx context.Context, razao string) ([]models.Prestador, error)
	Insert(ctx context.Context, p *models.Prestador) (*repository.InsertResult, error)
	UpdateSet(ctx context.Context, id primitive.ObjectID, p *models.Prestador) (*repository.UpdateResult, error)
	Delete(ctx context.Context, id string) (*repository.DeleteResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, body string, headers amqp.Table) error
	Close() error
}

type PrestadorHandler struct {
	Repo         Repository
	Engine       *validation.Engine
	Pub          Publisher
	StoreTimeout time.Duration
}

func NewPrestadorHandler(repo Repository, pub Publisher, storeTimeout time.Duration) *PrestadorHandler {
	return &PrestadorHandler{
		Repo:         repo,
		Engine:       validation.NewEngine(repo),
		Pub:          pub,
		StoreTimeout: storeTimeout,
	}
}

func (h *PrestadorHandler) timeout() time.Duration {
	if h.StoreTimeout > 0 {
		return h.StoreTimeout
	}
	return 5 * time.Second
}

func (h *PrestadorHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APIInfo responde a raiz /api com liveness e versão
func (h *PrestadorHandler) APIInfo(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": apiMessage,
		"version": apiVersion,
	})
}

// NotFound é a resposta de qualquer rota que não existe nesta API
func (h *PrestadorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrors(w, http.StatusNotFound, []validation.FieldError{{
		Value: r.URL.Path,
		Msg:   fmt.Sprintf("A rota %s não existe nesta API!", r.URL.Path),
		Param: "invalid route",
	}})
}

// Prestadores atende /api/prestadores (coleção): GET lista, POST cria,
// PUT atualiza (o _id vai no corpo, como no contrato original).
func (h *PrestadorHandler) Prestadores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PrestadorSubroutes atende /api/prestadores/{...}:
//
//	GET    /api/prestadores/id/{id}
//	GET    /api/prestadores/razao/{razao}
//	DELETE /api/prestadores/{id}
func (h *PrestadorHandler) PrestadorSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "prestadores" {
		h.NotFound(w, r)
		return
	}
	rest := parts[2:]

	switch {
	case len(rest) == 2 && rest[0] == "id" && rest[1] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getByID(w, r, rest[1])

	case len(rest) == 2 && rest[0] == "razao" && rest[1] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getByRazao(w, r, rest[1])

	case len(rest) == 1 && rest[0] != "":
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.delete(w, r, rest[0])

	default:
		h.NotFound(w, r)
	}
}

func (h *PrestadorHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	list, err := h.Repo.FindAll(ctx)
	if err != nil {
		serverError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *PrestadorHandler) getByID(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	// id inexistente devolve array vazio; id malformado é erro de consulta
	list, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		serverError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *PrestadorHandler) getByRazao(w http.ResponseWriter, r *http.Request, razao string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	list, err := h.Repo.FindByRazao(ctx, razao)
	if err != nil {
		serverError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *PrestadorHandler) create(w http.ResponseWriter, r *http.Request) {
	var p models.Prestador
	if err := utils.DecodeJSON(r.Body, &p); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	// create nunca aceita _id vindo do cliente
	p.ID = primitive.NilObjectID

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	errs, err := h.Engine.Validate(ctx, &p, primitive.NilObjectID)
	if err != nil {
		serverError(w, err)
		return
	}
	if len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}

	res, err := h.Repo.Insert(ctx, &p)
	if err != nil {
		// corrida entre a checagem e o insert: o índice único decide
		if errors.Is(err, repository.ErrDuplicateCNPJ) {
			writeErrors(w, http.StatusBadRequest, []validation.FieldError{validation.DuplicateCNPJ(p.CNPJ)})
			return
		}
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	h.publishEvent("Cadastro", res.InsertedID, &p)
	utils.WriteJSON(w, http.StatusCreated, res)
}

func (h *PrestadorHandler) update(w http.ResponseWriter, r *http.Request) {
	var p models.Prestador
	if err := utils.DecodeJSON(r.Body, &p); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	id := p.ID
	if id.IsZero() {
		writeErrors(w, http.StatusBadRequest, []validation.FieldError{{
			Msg:   "É obrigatório informar o _id do prestador",
			Param: "_id",
		}})
		return
	}
	// o _id sai do corpo antes da persistência; serve apenas de chave
	p.ID = primitive.NilObjectID

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	errs, err := h.Engine.Validate(ctx, &p, id)
	if err != nil {
		serverError(w, err)
		return
	}
	if len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs)
		return
	}

	res, err := h.Repo.UpdateSet(ctx, id, &p)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCNPJ) {
			writeErrors(w, http.StatusBadRequest, []validation.FieldError{validation.DuplicateCNPJ(p.CNPJ)})
			return
		}
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.MatchedCount == 0 {
		writeErrors(w, http.StatusNotFound, []validation.FieldError{{
			Value: id.Hex(),
			Msg:   "Nenhum prestador encontrado com o _id informado",
			Param: "_id",
		}})
		return
	}

	h.publishEvent("Edição", id.Hex(), &p)
	utils.WriteJSON(w, http.StatusCreated, res)
}

func (h *PrestadorHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	res, err := h.Repo.Delete(ctx, id)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}

	// deletedCount zero não é erro: nada correspondeu ao id
	h.publishEvent("Exclusão", id, nil)
	utils.WriteJSON(w, http.StatusAccepted, res)
}

func (h *PrestadorHandler) publishEvent(acao, id string, p *models.Prestador) {
	if h.Pub == nil {
		return
	}
	nome := id
	cnpj := ""
	if p != nil {
		cnpj = p.CNPJ
		if p.RazaoSocial != "" {
			nome = p.RazaoSocial
		} else if p.CNPJ != "" {
			nome = p.CNPJ
		}
	}
	msg := fmt.Sprintf("%s de PRESTADOR %s", acao, nome)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = h.Pub.Publish(ctx, msg, amqp.Table{
		"action":       strings.ToLower(acao), // cadastro|edição|exclusão
		"prestador_id": id,
		"cnpj":         cnpj,
		"razao_social": nome,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
