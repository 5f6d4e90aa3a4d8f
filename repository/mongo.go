package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"backoffice/config"
	"backoffice/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoTx struct {
	client  *mongo.Client
	enabled bool
}

// WithinTx runs fn inside a session transaction. With transactions disabled (standalone
// servers) fn runs directly and only the conditional writes guard against double effects.
func (t *mongoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NewMongoStore returns a Store backed by the collections of db.
func NewMongoStore(db *config.Database, transactions bool) *Store {
	return &Store{
		Tx:        &mongoTx{client: db.Client, enabled: transactions},
		Products:  &mongoProducts{db.StockCollection},
		Entries:   &mongoEntries{db.StockEntryCollection},
		Orders:    &mongoOrders{db.OrderCollection},
		Requests:  &mongoRequests{db.RequestOrderCollection},
		Invoices:  &mongoInvoices{db.InvoiceCollection},
		Counters:  &mongoCounters{db.CounterCollection},
		Sales:     &mongoSales{db.SaleCollection},
		Customers: &mongoCustomers{db.CustomerCollection},
		Logs: &mongoLogs{map[models.LogStream]*mongo.Collection{
			models.StreamAudit:    db.AuditCollection,
			models.StreamActivity: db.ActivityCollection,
		}},
		Users:    &mongoUsers{db.UserCollection},
		Sessions: &mongoSessions{db.SessionCollection},
	}
}

var afterUpdate = options.FindOneAndUpdate().SetReturnDocument(options.After)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

func scoped(ownerID string, id primitive.ObjectID) bson.M {
	filter := bson.M{"_id": id}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	return filter
}

// missingOrConflict tells apart a document that does not exist from one whose state rejected a
// conditional write.
func missingOrConflict(ctx context.Context, coll *mongo.Collection, filter bson.M, conflict error) error {
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return conflict
}

func statusStrings(list []models.PaymentStatus) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

// --- products ---

type mongoProducts struct{ coll *mongo.Collection }

var _ ProductRepository = (*mongoProducts)(nil)

func (r *mongoProducts) Create(ctx context.Context, p *models.Product) error {
	ensureID(&p.ID)
	_, err := r.coll.InsertOne(ctx, p)
	return mapErr(err)
}

func (r *mongoProducts) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *mongoProducts) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
	}
	sort := bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	switch f.SortBy {
	case "quantity":
		sort = append(bson.D{{Key: "quantity", Value: 1}}, sort...)
	case "expiry":
		sort = append(bson.D{{Key: "expiry_date", Value: 1}}, sort...)
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	out := []models.Product{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if f.SortBy == "expiry" {
		// Mongo sorts missing fields first; products without expiry belong last.
		sortProducts(out, f.SortBy)
	}
	return out, nil
}

func (r *mongoProducts) Update(ctx context.Context, id primitive.ObjectID, upd models.UpdateProduct, at time.Time) (*models.Product, error) {
	set := bson.M{"updated_at": at}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.SubCategory != nil {
		set["sub_category"] = *upd.SubCategory
	}
	if upd.Packaging != nil {
		set["packaging"] = *upd.Packaging
	}
	if upd.CriticalStock != nil {
		set["critical_stock"] = *upd.CriticalStock
	}
	if upd.PricePerBox != nil {
		set["price_per_box"] = *upd.PricePerBox
	}
	if upd.PricePerTest != nil {
		set["price_per_test"] = *upd.PricePerTest
	}
	if upd.PricePerPiece != nil {
		set["price_per_piece"] = *upd.PricePerPiece
	}
	if upd.ExpiryDate != nil {
		set["expiry_date"] = *upd.ExpiryDate
	}
	if upd.ImageURL != nil {
		set["image_url"] = *upd.ImageURL
	}
	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate).Decode(&p)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *mongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProducts) AdjustQuantity(ctx context.Context, id primitive.ObjectID, delta int, opts AdjustOptions) (*models.Product, error) {
	filter := bson.M{"_id": id}
	conditional := opts.RequireAvailable && delta < 0
	if conditional {
		filter["quantity"] = bson.M{"$gte": -delta}
	}
	set := bson.M{"updated_at": opts.At}
	if opts.ExpiryDate != nil {
		set["expiry_date"] = *opts.ExpiryDate
	}
	update := bson.M{"$inc": bson.M{"quantity": delta}, "$set": set}

	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) && conditional {
		return nil, missingOrConflict(ctx, r.coll, bson.M{"_id": id}, ErrInsufficient)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// --- stock entries ---

type mongoEntries struct{ coll *mongo.Collection }

var _ EntryRepository = (*mongoEntries)(nil)

func (r *mongoEntries) Append(ctx context.Context, e *models.StockEntry) error {
	ensureID(&e.ID)
	_, err := r.coll.InsertOne(ctx, e)
	return mapErr(err)
}

func (r *mongoEntries) find(ctx context.Context, filter bson.M, dir int) ([]models.StockEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: dir}, {Key: "_id", Value: dir}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []models.StockEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoEntries) ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.StockEntry, error) {
	return r.find(ctx, bson.M{"product_id": productID}, -1)
}

func (r *mongoEntries) ListByReference(ctx context.Context, referenceID string) ([]models.StockEntry, error) {
	return r.find(ctx, bson.M{"reference_id": referenceID}, 1)
}

// --- orders ---

type mongoOrders struct{ coll *mongo.Collection }

var _ OrderRepository = (*mongoOrders)(nil)

func (r *mongoOrders) Create(ctx context.Context, o *models.Order) error {
	ensureID(&o.ID)
	_, err := r.coll.InsertOne(ctx, o)
	return mapErr(err)
}

func (r *mongoOrders) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	if err := r.coll.FindOne(ctx, scoped(ownerID, id)).Decode(&o); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r *mongoOrders) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Status != "" {
		filter["payment_status"] = f.Status
	}
	if created := dateRange(f.From, f.To); created != nil {
		filter["created_at"] = created
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func dateRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	r := bson.M{}
	if from != nil {
		r["$gte"] = *from
	}
	if to != nil {
		r["$lte"] = *to
	}
	return r
}

func (r *mongoOrders) conditional(ctx context.Context, ownerID string, id primitive.ObjectID, allowed []models.PaymentStatus, update bson.M) (*models.Order, error) {
	filter := scoped(ownerID, id)
	filter["payment_status"] = bson.M{"$in": statusStrings(allowed)}
	var o models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missingOrConflict(ctx, r.coll, scoped(ownerID, id), ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *mongoOrders) ReplaceLines(ctx context.Context, ownerID string, id primitive.ObjectID, lines []models.OrderLine, total float64, allowed []models.PaymentStatus, at time.Time) (*models.Order, error) {
	return r.conditional(ctx, ownerID, id, allowed, bson.M{"$set": bson.M{
		"lines":        lines,
		"total_amount": total,
		"updated_at":   at,
	}})
}

func (r *mongoOrders) TransitionStatus(ctx context.Context, ownerID string, id primitive.ObjectID, from []models.PaymentStatus, change models.OrderStatusChange) (*models.Order, error) {
	set := bson.M{"payment_status": change.To, "updated_at": change.At}
	if change.StockDeducted != nil {
		set["stock_deducted"] = *change.StockDeducted
	}
	if change.PaidAt != nil {
		set["paid_at"] = *change.PaidAt
	}
	if change.CancelledAt != nil {
		set["cancelled_at"] = *change.CancelledAt
	}
	return r.conditional(ctx, ownerID, id, from, bson.M{"$set": set})
}

func (r *mongoOrders) Delete(ctx context.Context, ownerID string, id primitive.ObjectID, allowed []models.PaymentStatus) error {
	filter := scoped(ownerID, id)
	filter["payment_status"] = bson.M{"$in": statusStrings(allowed)}
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return missingOrConflict(ctx, r.coll, scoped(ownerID, id), ErrConflict)
	}
	return nil
}

func (r *mongoOrders) CountByStatus(ctx context.Context, ownerID string) (map[models.PaymentStatus]int, error) {
	match := bson.M{}
	if ownerID != "" {
		match["owner_id"] = ownerID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$payment_status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status models.PaymentStatus `bson:"_id"`
		Count  int                  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[models.PaymentStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// --- request orders ---

type mongoRequests struct{ coll *mongo.Collection }

var _ RequestOrderRepository = (*mongoRequests)(nil)

func (r *mongoRequests) Create(ctx context.Context, ro *models.RequestOrder) error {
	ensureID(&ro.ID)
	_, err := r.coll.InsertOne(ctx, ro)
	return mapErr(err)
}

func (r *mongoRequests) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.RequestOrder, error) {
	var ro models.RequestOrder
	if err := r.coll.FindOne(ctx, scoped(ownerID, id)).Decode(&ro); err != nil {
		return nil, mapErr(err)
	}
	return &ro, nil
}

func (r *mongoRequests) GetByToken(ctx context.Context, token string) (*models.RequestOrder, error) {
	var ro models.RequestOrder
	if err := r.coll.FindOne(ctx, bson.M{"view_token": token}).Decode(&ro); err != nil {
		return nil, mapErr(err)
	}
	return &ro, nil
}

func (r *mongoRequests) List(ctx context.Context, f models.RequestOrderFilter) ([]models.RequestOrder, error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []models.RequestOrder
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoRequests) Resolve(ctx context.Context, ownerID string, id primitive.ObjectID, status models.ConfirmationStatus, before *time.Time, orderID string, at time.Time) (*models.RequestOrder, error) {
	filter := scoped(ownerID, id)
	filter["status"] = models.ConfirmationPending
	if before != nil {
		filter["expiry"] = bson.M{"$gt": *before}
	}
	set := bson.M{"status": status, "updated_at": at}
	if orderID != "" {
		set["order_id"] = orderID
	}
	var ro models.RequestOrder
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, afterUpdate).Decode(&ro)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missingOrConflict(ctx, r.coll, scoped(ownerID, id), ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &ro, nil
}

func (r *mongoRequests) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"status": models.ConfirmationPending, "expiry": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"status": models.ConfirmationUnconfirmed, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoRequests) CountPending(ctx context.Context, ownerID string) (int, error) {
	filter := bson.M{"status": models.ConfirmationPending}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	n, err := r.coll.CountDocuments(ctx, filter)
	return int(n), err
}

// --- invoices ---

type mongoInvoices struct{ coll *mongo.Collection }

var _ InvoiceRepository = (*mongoInvoices)(nil)

func (r *mongoInvoices) Create(ctx context.Context, inv *models.Invoice) error {
	ensureID(&inv.ID)
	_, err := r.coll.InsertOne(ctx, inv)
	return mapErr(err)
}

func (r *mongoInvoices) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.coll.FindOne(ctx, scoped(ownerID, id)).Decode(&inv); err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (r *mongoInvoices) GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.coll.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&inv); err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (r *mongoInvoices) List(ctx context.Context, ownerID string) ([]models.Invoice, error) {
	filter := bson.M{}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "invoice_number", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []models.Invoice
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoInvoices) SetPaymentStatus(ctx context.Context, orderID primitive.ObjectID, status models.PaymentStatus, at time.Time) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{"order_id": orderID},
		bson.M{"$set": bson.M{"payment_status": status, "updated_at": at}})
	return err
}

func (r *mongoInvoices) MaxNumber(ctx context.Context, ownerID string) (int64, error) {
	// Compared as numbers: past 999999 the padded strings no longer sort numerically.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"highest": bson.M{"$max": bson.M{"$convert": bson.M{
				"input":   "$invoice_number",
				"to":      "long",
				"onError": int64(0),
				"onNull":  int64(0),
			}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var out []struct {
		Highest int64 `bson:"highest"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Highest, nil
}

// --- counters ---

type mongoCounters struct{ coll *mongo.Collection }

var _ CounterRepository = (*mongoCounters)(nil)

type counterDoc struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"value"`
}

func (r *mongoCounters) Increment(ctx context.Context, name string) (int64, error) {
	var doc counterDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"value": 1}}, afterUpdate).Decode(&doc)
	if err != nil {
		return 0, mapErr(err)
	}
	return doc.Value, nil
}

func (r *mongoCounters) Init(ctx context.Context, name string, value int64) error {
	_, err := r.coll.InsertOne(ctx, counterDoc{Name: name, Value: value})
	return mapErr(err)
}

// --- sales ---

type mongoSales struct{ coll *mongo.Collection }

var _ SaleRepository = (*mongoSales)(nil)

func (r *mongoSales) Create(ctx context.Context, s *models.Sale) error {
	ensureID(&s.ID)
	_, err := r.coll.InsertOne(ctx, s)
	return mapErr(err)
}

func (r *mongoSales) GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Sale, error) {
	var s models.Sale
	if err := r.coll.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&s); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *mongoSales) List(ctx context.Context, f models.SaleFilter) ([]models.Sale, error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if !f.IncludeVoided {
		filter["voided"] = false
	}
	if date := dateRange(f.From, f.To); date != nil {
		filter["date"] = date
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Sale
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoSales) Void(ctx context.Context, orderID primitive.ObjectID, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"order_id": orderID, "voided": false},
		bson.M{"$set": bson.M{"voided": true, "voided_at": at}},
	)
	return err
}

// --- customers ---

type mongoCustomers struct{ coll *mongo.Collection }

var _ CustomerRepository = (*mongoCustomers)(nil)

func (r *mongoCustomers) Create(ctx context.Context, c *models.Customer) error {
	ensureID(&c.ID)
	_, err := r.coll.InsertOne(ctx, c)
	return mapErr(err)
}

func (r *mongoCustomers) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Customer, error) {
	var c models.Customer
	if err := r.coll.FindOne(ctx, scoped(ownerID, id)).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *mongoCustomers) List(ctx context.Context, ownerIDs []string) ([]models.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"owner_id": bson.M{"$in": ownerIDs}}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Customer
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoCustomers) Update(ctx context.Context, ownerID string, id primitive.ObjectID, c models.Customer) (*models.Customer, error) {
	update := bson.M{"$set": bson.M{
		"name":       c.Name,
		"address":    c.Address,
		"city":       c.City,
		"contact":    c.Contact,
		"email":      c.Email,
		"updated_at": c.UpdatedAt,
	}}
	var out models.Customer
	if err := r.coll.FindOneAndUpdate(ctx, scoped(ownerID, id), update, afterUpdate).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (r *mongoCustomers) Delete(ctx context.Context, ownerID string, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, scoped(ownerID, id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- logs ---

type mongoLogs struct {
	streams map[models.LogStream]*mongo.Collection
}

var _ LogRepository = (*mongoLogs)(nil)

func (r *mongoLogs) stream(s models.LogStream) (*mongo.Collection, error) {
	coll, ok := r.streams[s]
	if !ok {
		return nil, fmt.Errorf("unknown log stream %q", s)
	}
	return coll, nil
}

func (r *mongoLogs) Append(ctx context.Context, stream models.LogStream, e *models.LogEntry) error {
	coll, err := r.stream(stream)
	if err != nil {
		return err
	}
	ensureID(&e.ID)
	_, err = coll.InsertOne(ctx, e)
	return err
}

func (r *mongoLogs) List(ctx context.Context, stream models.LogStream, limit int) ([]models.LogEntry, error) {
	coll, err := r.stream(stream)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.LogEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- users ---

type mongoUsers struct{ coll *mongo.Collection }

var _ UserRepository = (*mongoUsers)(nil)

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	ensureID(&u.ID)
	_, err := r.coll.InsertOne(ctx, u)
	return mapErr(err)
}

func (r *mongoUsers) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) List(ctx context.Context) ([]models.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.User
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoUsers) FirstByRole(ctx context.Context, role string) (*models.User, error) {
	var u models.User
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := r.coll.FindOne(ctx, bson.M{"role": role}, opts).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// --- sessions ---

type mongoSessions struct{ coll *mongo.Collection }

var _ SessionRepository = (*mongoSessions)(nil)

func (r *mongoSessions) Create(ctx context.Context, s *models.Session) error {
	ensureID(&s.ID)
	_, err := r.coll.InsertOne(ctx, s)
	return mapErr(err)
}

func (r *mongoSessions) Get(ctx context.Context, id primitive.ObjectID) (*models.Session, error) {
	var s models.Session
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *mongoSessions) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
