package admin

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fatecitu/cadastro-prestador/internal/models"
	"github.com/fatecitu/cadastro-prestador/internal/repository"
	"github.com/fatecitu/cadastro-prestador/internal/validation"
)

//go:embed seeds/prestadores.json
var prestadoresJSON []byte

// SeedPrestadores é idempotente: insere o que não existir e ignora o que o
// índice único recusar. Cada item passa pelas mesmas regras da API.
func SeedPrestadores(ctx context.Context, repo *repository.PrestadorRepository, log *slog.Logger) error {
	var items []models.Prestador
	if err := json.Unmarshal(prestadoresJSON, &items); err != nil {
		return err
	}

	engine := validation.NewEngine(repo)

	for i := range items {
		p := &items[i]

		// timeout curto por item pra não travar
		ictx, cancel := context.WithTimeout(ctx, 3*time.Second)
		errs, err := engine.Validate(ictx, p, primitive.NilObjectID)
		if err != nil {
			cancel()
			return err
		}
		if len(errs) > 0 {
			cancel()
			log.Warn("seed_skip_invalido", "cnpj", p.CNPJ, "motivo", errs[0].Msg)
			continue
		}

		_, err = repo.Insert(ictx, p)
		cancel()

		if err != nil {
			if errors.Is(err, repository.ErrDuplicateCNPJ) {
				log.Info("seed_prestador_existe", "cnpj", p.CNPJ)
				continue
			}
			return err
		}
		log.Info("seed_prestador_criado", "cnpj", p.CNPJ)
	}

	log.Info("seed_prestadores_done", "count", len(items))
	return nil
}
