package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Prestador guarda os campos validados do contrato; qualquer outro campo
// enviado pelo cliente é preservado como chegou em Extras (inline no BSON).
type Prestador struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	CNPJ                string             `bson:"cnpj"`
	RazaoSocial         string             `bson:"razao_social"`
	CNAEFiscal          any                `bson:"cnae_fiscal"`
	DataInicioAtividade any                `bson:"data_inicio_atividade,omitempty"`
	Extras              map[string]any     `bson:",inline"`
}

// UnmarshalJSON separa os campos do contrato dos campos livres.
// Números ficam como json.Number para não perder a forma original.
func (p *Prestador) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if v, ok := raw["_id"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("_id deve ser uma string hexadecimal")
		}
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return fmt.Errorf("_id inválido: %w", err)
		}
		p.ID = oid
		delete(raw, "_id")
	}
	if v, ok := raw["cnpj"].(string); ok {
		p.CNPJ = v
	}
	delete(raw, "cnpj")
	if v, ok := raw["razao_social"].(string); ok {
		p.RazaoSocial = v
	}
	delete(raw, "razao_social")

	p.CNAEFiscal = raw["cnae_fiscal"]
	delete(raw, "cnae_fiscal")
	p.DataInicioAtividade = raw["data_inicio_atividade"]
	delete(raw, "data_inicio_atividade")

	if len(raw) > 0 {
		p.Extras = raw
	} else {
		p.Extras = nil
	}
	return nil
}

func (p Prestador) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extras)+5)
	for k, v := range p.Extras {
		m[k] = v
	}
	if !p.ID.IsZero() {
		m["_id"] = p.ID.Hex()
	}
	m["cnpj"] = p.CNPJ
	m["razao_social"] = p.RazaoSocial
	if p.CNAEFiscal != nil {
		m["cnae_fiscal"] = p.CNAEFiscal
	}
	if p.DataInicioAtividade != nil {
		m["data_inicio_atividade"] = p.DataInicioAtividade
	}
	return json.Marshal(m)
}
