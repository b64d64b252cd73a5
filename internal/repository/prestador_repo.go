package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fatecitu/cadastro-prestador/internal/models"
)

var (
	ErrDuplicateCNPJ = errors.New("cnpj already exists")
	ErrInvalidID     = errors.New("invalid document id")
)

// Resultados das escritas no formato que o cliente recebe de volta.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

type PrestadorRepository struct {
	coll *mongo.Collection
}

func NewPrestadorRepository(db *mongo.Database) *PrestadorRepository {
	return &PrestadorRepository{coll: db.Collection("prestadores")}
}

func (r *PrestadorRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "cnpj", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("uniq_cnpj"),
	}
	_, err := r.coll.Indexes().CreateOne(ctx, model)
	if err == nil {
		return nil
	}
	// Se já existir com outra opção, tenta dropar e recriar
	if ce, ok := err.(mongo.CommandError); ok && ce.Code == 85 { // IndexOptionsConflict
		if _, dropErr := r.coll.Indexes().DropOne(ctx, "uniq_cnpj"); dropErr != nil {
			return fmt.Errorf("drop index uniq_cnpj: %w", dropErr)
		}
		_, createErr := r.coll.Indexes().CreateOne(ctx, model)
		return createErr
	}
	return err
}

var sortRazao = options.Find().SetSort(bson.D{{Key: "razao_social", Value: 1}})

func (r *PrestadorRepository) FindAll(ctx context.Context) ([]models.Prestador, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, sortRazao)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

// FindByID devolve 0 ou 1 documentos; id que não existe não é erro.
func (r *PrestadorRepository) FindByID(ctx context.Context, id string) ([]models.Prestador, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$eq": oid}})
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

// FindByCNPJ é a consulta usada pela regra de unicidade (match exato).
func (r *PrestadorRepository) FindByCNPJ(ctx context.Context, cnpj string) ([]models.Prestador, error) {
	cur, err := r.coll.Find(ctx, bson.M{"cnpj": bson.M{"$eq": cnpj}})
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

// FindByRazao faz busca por substring literal, sem case, ordenada.
func (r *PrestadorRepository) FindByRazao(ctx context.Context, razao string) ([]models.Prestador, error) {
	filter := bson.M{"razao_social": bson.M{
		"$regex":   regexp.QuoteMeta(razao),
		"$options": "i",
	}}
	cur, err := r.coll.Find(ctx, filter, sortRazao)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

func (r *PrestadorRepository) Insert(ctx context.Context, p *models.Prestador) (*InsertResult, error) {
	res, err := r.coll.InsertOne(ctx, p)
	if err != nil {
		return nil, translateWriteError(err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return &InsertResult{Acknowledged: true, InsertedID: oid.Hex()}, nil
}

// UpdateSet aplica $set do documento inteiro sobre o _id informado. O corpo
// nunca carrega o próprio _id (o handler remove antes).
func (r *PrestadorRepository) UpdateSet(ctx context.Context, id primitive.ObjectID, p *models.Prestador) (*UpdateResult, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": bson.M{"$eq": id}},
		bson.M{"$set": p},
	)
	if err != nil {
		return nil, translateWriteError(err)
	}
	return &UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func (r *PrestadorRepository) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": bson.M{"$eq": oid}})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]models.Prestador, error) {
	defer cur.Close(ctx)

	list := []models.Prestador{}
	for cur.Next(ctx) {
		var p models.Prestador
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, cur.Err()
}

func translateWriteError(err error) error {
	if we, ok := err.(mongo.WriteException); ok {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return ErrDuplicateCNPJ
			}
		}
	}
	return err
}
