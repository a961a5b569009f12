package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

const (
	productsCollection = "products"
	salesCollection    = "sales"
	tokensCollection   = "tokens"
	reportsCollection  = "daily_reports"
)

// MongoDBRepository implements repository.Store on MongoDB. Transactions need a
// replica set or sharded cluster.
type MongoDBRepository struct {
	client   *mongo.Client
	products *mongo.Collection
	sales    *mongo.Collection
	tokens   *mongo.Collection
	reports  *mongo.Collection
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects, pings and ensures the unique indexes.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoDBRepository{
		client:   client,
		products: db.Collection(productsCollection),
		sales:    db.Collection(salesCollection),
		tokens:   db.Collection(tokensCollection),
		reports:  db.Collection(reportsCollection),
	}

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	if _, err := r.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "barcode", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create barcode index: %w", err)
	}

	if _, err := r.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sale_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create token sale index: %w", err)
	}

	if _, err := r.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create token status index: %w", err)
	}

	return nil
}

// WithinTx runs fn inside a multi-document transaction with snapshot reads and
// majority writes. The driver retries fn on transient transaction errors.
func (r *MongoDBRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return models.Unavailable("start session", err)
	}
	defer session.EndSession(ctx)

	txnOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx, r)
	}, txnOptions)
	return err
}

// ProductByBarcode looks a product up through the unique barcode index.
func (r *MongoDBRepository) ProductByBarcode(ctx context.Context, barcode string) (models.Product, error) {
	return r.findProduct(ctx, bson.M{"barcode": barcode})
}

// ProductByID looks a product up by identity.
func (r *MongoDBRepository) ProductByID(ctx context.Context, id string) (models.Product, error) {
	return r.findProduct(ctx, bson.M{"_id": id})
}

func (r *MongoDBRepository) findProduct(ctx context.Context, filter bson.M) (models.Product, error) {
	var p models.Product
	if err := r.products.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, models.ErrProductNotFound
		}
		return models.Product{}, models.Unavailable("find product", err)
	}
	return p, nil
}

// ListProducts returns the catalog ordered by name.
func (r *MongoDBRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := r.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, models.Unavailable("list products", err)
	}

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, models.Unavailable("decode products", err)
	}
	return products, nil
}

// AdjustStock applies delta with a conditional $inc so concurrent decrements cannot
// take stock below zero.
func (r *MongoDBRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}

	res, err := r.products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return models.Unavailable("adjust stock", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	current, err := r.ProductByID(ctx, id)
	if err != nil {
		return err
	}
	return &models.InsufficientStockError{ProductID: id, Requested: -delta, Available: current.Stock}
}

// UpsertProduct replaces the document with the given id, inserting it when absent.
func (r *MongoDBRepository) UpsertProduct(ctx context.Context, p models.Product) error {
	_, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &models.ValidationError{Field: "barcode", Reason: "already assigned to another product"}
		}
		return models.Unavailable("upsert product", err)
	}
	return nil
}

// DeleteProduct removes a product by id. Sales keep their item snapshots.
func (r *MongoDBRepository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.Unavailable("delete product", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// AppendSale inserts a sale record.
func (r *MongoDBRepository) AppendSale(ctx context.Context, sale models.SaleRecord) error {
	if _, err := r.sales.InsertOne(ctx, sale); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("sale %s: %w", sale.ID, models.ErrDuplicateID)
		}
		return models.Unavailable("insert sale", err)
	}
	return nil
}

// AppendToken inserts an exit token.
func (r *MongoDBRepository) AppendToken(ctx context.Context, token models.ExitToken) error {
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("token %s: %w", token.ID, models.ErrDuplicateID)
		}
		return models.Unavailable("insert token", err)
	}
	return nil
}

// GetSale loads a sale by id.
func (r *MongoDBRepository) GetSale(ctx context.Context, id string) (models.SaleRecord, error) {
	var sale models.SaleRecord
	if err := r.sales.FindOne(ctx, bson.M{"_id": id}).Decode(&sale); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SaleRecord{}, models.ErrSaleNotFound
		}
		return models.SaleRecord{}, models.Unavailable("find sale", err)
	}
	return sale, nil
}

// GetToken loads a token by id.
func (r *MongoDBRepository) GetToken(ctx context.Context, id string) (models.ExitToken, error) {
	var token models.ExitToken
	if err := r.tokens.FindOne(ctx, bson.M{"_id": id}).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ExitToken{}, models.ErrTokenNotFound
		}
		return models.ExitToken{}, models.Unavailable("find token", err)
	}
	return token, nil
}

// UpdateTokenStatus is a single-document compare-and-set on status.
func (r *MongoDBRepository) UpdateTokenStatus(ctx context.Context, id string, from, to models.TokenStatus) error {
	res, err := r.tokens.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}})
	if err != nil {
		return models.Unavailable("update token status", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	count, err := r.tokens.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return models.Unavailable("count token", err)
	}
	if count == 0 {
		return models.ErrTokenNotFound
	}
	return models.ErrStatusConflict
}

// ListSales returns every sale, oldest first.
func (r *MongoDBRepository) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	cursor, err := r.sales.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, models.Unavailable("list sales", err)
	}

	sales := make([]models.SaleRecord, 0)
	if err := cursor.All(ctx, &sales); err != nil {
		return nil, models.Unavailable("decode sales", err)
	}
	return sales, nil
}

// ListTokens returns every token, oldest first.
func (r *MongoDBRepository) ListTokens(ctx context.Context) ([]models.ExitToken, error) {
	cursor, err := r.tokens.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, models.Unavailable("list tokens", err)
	}

	tokens := make([]models.ExitToken, 0)
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, models.Unavailable("decode tokens", err)
	}
	return tokens, nil
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.reports.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// Drop removes the database. Used by integration tests.
func (r *MongoDBRepository) Drop(ctx context.Context) error {
	return r.products.Database().Drop(ctx)
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
