package handlers

import (
	"fmt"
	"net/http"

	"github.com/fatecitu/cadastro-prestador/internal/utils"
	"github.com/fatecitu/cadastro-prestador/internal/validation"
)

// ErrorEnvelope é o formato único de erro da API: {errors:[{value,msg,param}]}
type ErrorEnvelope struct {
	Errors []validation.FieldError `json:"errors"`
}

func writeErrors(w http.ResponseWriter, code int, errs []validation.FieldError) {
	utils.WriteJSON(w, code, ErrorEnvelope{Errors: errs})
}

func writeErrorMsg(w http.ResponseWriter, code int, msg string) {
	writeErrors(w, code, []validation.FieldError{{Msg: msg}})
}

// serverError espelha o "Erro: <mensagem>" das rotas de leitura
func serverError(w http.ResponseWriter, err error) {
	writeErrorMsg(w, http.StatusInternalServerError, fmt.Sprintf("Erro: %v", err))
}
