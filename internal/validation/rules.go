// Package validation concentra as regras aplicadas a um prestador antes da
// persistência. As regras formam uma lista ordenada e todas são executadas;
// as falhas são acumuladas na ordem das regras (comportamento de formulário,
// sem curto-circuito). A regra de unicidade do CNPJ é a única que consulta o
// banco e entra na lista como uma regra qualquer.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fatecitu/cadastro-prestador/internal/models"
)

// FieldError segue o formato do envelope de resposta {errors:[...]}
type FieldError struct {
	Value any    `json:"value,omitempty"`
	Msg   string `json:"msg"`
	Param string `json:"param,omitempty"`
}

const (
	MsgCNPJObrigatorio   = "É obrigatório informar o CNPJ"
	MsgCNPJTamanho       = "O tamanho do CNPJ é inválido"
	MsgRazaoObrigatoria  = "É obrigatório informar a razão social"
	MsgRazaoCaracteres   = "Existem caracteres inválidos no nome da Razão"
	MsgRazaoMuitoCurta   = "A Razão informada é muito curta"
	MsgRazaoMuitoLonga   = "A Razão informada é muito longa"
	MsgCNAENumerico      = "O CNAE deve ser um número"
	MsgDataInvalida      = "Informe uma data válida no padrão AAAA-MM-DD"
	msgCNPJJaInformadoFm = "O CNPJ %s já está informado"
)

// DuplicateCNPJ monta a mesma rejeição que a regra de unicidade produz.
// Usada pelos handlers para traduzir o conflito do índice único quando a
// corrida entre a checagem e a escrita deixa um duplicado passar.
func DuplicateCNPJ(cnpj string) FieldError {
	return FieldError{Value: cnpj, Msg: fmt.Sprintf(msgCNPJJaInformadoFm, cnpj), Param: "cnpj"}
}

// CNPJFinder é o recorte do repositório que a regra de unicidade precisa.
type CNPJFinder interface {
	FindByCNPJ(ctx context.Context, cnpj string) ([]models.Prestador, error)
}

// Rule avalia um prestador candidato. selfID é o _id do próprio documento em
// updates (zero em creates). Um error indica falha da regra em si (consulta
// ao banco), não uma rejeição do candidato.
type Rule interface {
	Check(ctx context.Context, p *models.Prestador, selfID primitive.ObjectID) ([]FieldError, error)
}

// pureRule adapta checagens sem I/O para a interface Rule.
type pureRule func(p *models.Prestador) []FieldError

func (f pureRule) Check(_ context.Context, p *models.Prestador, _ primitive.ObjectID) ([]FieldError, error) {
	return f(p), nil
}

type Engine struct {
	rules []Rule
}

func NewEngine(store CNPJFinder) *Engine {
	return &Engine{rules: []Rule{
		pureRule(cnpjObrigatorio),
		pureRule(cnpjTamanho),
		cnpjUnico{store: store},
		pureRule(razaoObrigatoria),
		pureRule(razaoCaracteres),
		pureRule(razaoTamanho),
		pureRule(cnaeNumerico),
		pureRule(dataInicioAtividade),
	}}
}

// Validate normaliza o candidato e roda todas as regras. Retorna a lista de
// rejeições (vazia = aprovado) ou um error se alguma regra não pôde ser
// avaliada — caso em que nenhuma rejeição parcial é aproveitada.
func (e *Engine) Validate(ctx context.Context, p *models.Prestador, selfID primitive.ObjectID) ([]FieldError, error) {
	normalize(p)

	var errs []FieldError
	for _, r := range e.rules {
		fe, err := r.Check(ctx, p, selfID)
		if err != nil {
			return nil, fmt.Errorf("validação do prestador: %w", err)
		}
		errs = append(errs, fe...)
	}
	return errs, nil
}

// normalize espelha os sanitizadores do formulário: trim nos campos texto e
// json.Number convertido para o tipo numérico que será persistido.
func normalize(p *models.Prestador) {
	p.CNPJ = strings.TrimSpace(p.CNPJ)
	p.RazaoSocial = strings.TrimSpace(p.RazaoSocial)

	if n, ok := p.CNAEFiscal.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			p.CNAEFiscal = i
		} else if f, err := n.Float64(); err == nil {
			p.CNAEFiscal = f
		}
	}
}

func cnpjObrigatorio(p *models.Prestador) []FieldError {
	if p.CNPJ == "" {
		return []FieldError{{Value: p.CNPJ, Msg: MsgCNPJObrigatorio, Param: "cnpj"}}
	}
	return nil
}

func cnpjTamanho(p *models.Prestador) []FieldError {
	if utf8.RuneCountInString(p.CNPJ) != 14 {
		return []FieldError{{Value: p.CNPJ, Msg: MsgCNPJTamanho, Param: "cnpj"}}
	}
	return nil
}

// cnpjUnico consulta a collection: candidato duplica quando já existe outro
// documento com o mesmo cnpj (em update, o próprio documento não conta).
type cnpjUnico struct {
	store CNPJFinder
}

func (r cnpjUnico) Check(ctx context.Context, p *models.Prestador, selfID primitive.ObjectID) ([]FieldError, error) {
	found, err := r.store.FindByCNPJ(ctx, p.CNPJ)
	if err != nil {
		return nil, fmt.Errorf("consulta de cnpj: %w", err)
	}
	for _, doc := range found {
		if selfID.IsZero() || doc.ID != selfID {
			return []FieldError{{
				Value: p.CNPJ,
				Msg:   fmt.Sprintf(msgCNPJJaInformadoFm, p.CNPJ),
				Param: "cnpj",
			}}, nil
		}
	}
	return nil, nil
}

func razaoObrigatoria(p *models.Prestador) []FieldError {
	if p.RazaoSocial == "" {
		return []FieldError{{Value: p.RazaoSocial, Msg: MsgRazaoObrigatoria, Param: "razao_social"}}
	}
	return nil
}

func razaoCaracteres(p *models.Prestador) []FieldError {
	if !razaoCaracteresValidos(p.RazaoSocial) {
		return []FieldError{{Value: p.RazaoSocial, Msg: MsgRazaoCaracteres, Param: "razao_social"}}
	}
	return nil
}

// letras/dígitos (unicode, cobre acentuação) mais '.', '/' e espaço; exige
// ao menos um caractere alfanumérico de fato.
func razaoCaracteresValidos(s string) bool {
	alnum := 0
	for _, r := range s {
		switch {
		case r == '.' || r == '/' || r == ' ':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum++
		default:
			return false
		}
	}
	return alnum > 0
}

func razaoTamanho(p *models.Prestador) []FieldError {
	n := utf8.RuneCountInString(p.RazaoSocial)
	var errs []FieldError
	if n < 3 {
		errs = append(errs, FieldError{Value: p.RazaoSocial, Msg: MsgRazaoMuitoCurta, Param: "razao_social"})
	}
	if n > 100 {
		errs = append(errs, FieldError{Value: p.RazaoSocial, Msg: MsgRazaoMuitoLonga, Param: "razao_social"})
	}
	return errs
}

var numericoRe = regexp.MustCompile(`^[+-]?([0-9]*[.])?[0-9]+$`)

func cnaeNumerico(p *models.Prestador) []FieldError {
	bad := []FieldError{{Value: p.CNAEFiscal, Msg: MsgCNAENumerico, Param: "cnae_fiscal"}}
	switch v := p.CNAEFiscal.(type) {
	case int64, float64, int, json.Number:
		return nil
	case string:
		if numericoRe.MatchString(v) {
			return nil
		}
		return bad
	default:
		return bad
	}
}

func dataInicioAtividade(p *models.Prestador) []FieldError {
	if p.DataInicioAtividade == nil {
		return nil // opcional (ausente ou null)
	}
	bad := []FieldError{{Value: p.DataInicioAtividade, Msg: MsgDataInvalida, Param: "data_inicio_atividade"}}
	s, ok := p.DataInicioAtividade.(string)
	if !ok || !dataValida(s) {
		return bad
	}
	return nil
}

func dataValida(s string) bool {
	if len(s) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
