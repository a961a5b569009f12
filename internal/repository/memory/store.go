// Package memory implements the repository contracts in process memory. It backs the
// service tests and the "memory" store driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

// Store serializes every operation behind one mutex. Transactions work on a copy of
// the state that replaces the live state only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy of the state. The copy is committed when fn
// returns nil. fn must not call back into s.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &txView{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) ProductByBarcode(_ context.Context, barcode string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.productByBarcode(barcode)
}

func (s *Store) ProductByID(_ context.Context, id string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.productByID(id)
}

func (s *Store) ListProducts(context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listProducts(), nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.adjustStock(id, delta)
}

func (s *Store) UpsertProduct(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.upsertProduct(p)
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteProduct(id)
}

func (s *Store) AppendSale(_ context.Context, sale models.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.appendSale(sale)
}

func (s *Store) AppendToken(_ context.Context, token models.ExitToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.appendToken(token)
}

func (s *Store) GetSale(_ context.Context, id string) (models.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getSale(id)
}

func (s *Store) GetToken(_ context.Context, id string) (models.ExitToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getToken(id)
}

func (s *Store) UpdateTokenStatus(_ context.Context, id string, from, to models.TokenStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateTokenStatus(id, from, to)
}

func (s *Store) ListSales(context.Context) ([]models.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listSales(), nil
}

func (s *Store) ListTokens(context.Context) ([]models.ExitToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listTokens(), nil
}

func (s *Store) SaveDailyReport(_ context.Context, report models.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.reports = append(s.state.reports, report)
	return nil
}

// DailyReports returns the archived reports in insertion order.
func (s *Store) DailyReports() []models.DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DailyReport, len(s.state.reports))
	copy(out, s.state.reports)
	return out
}

// txView exposes a working copy without locking; the owning WithinTx holds the lock.
type txView struct {
	state *state
}

func (t *txView) ProductByBarcode(_ context.Context, barcode string) (models.Product, error) {
	return t.state.productByBarcode(barcode)
}

func (t *txView) ProductByID(_ context.Context, id string) (models.Product, error) {
	return t.state.productByID(id)
}

func (t *txView) ListProducts(context.Context) ([]models.Product, error) {
	return t.state.listProducts(), nil
}

func (t *txView) AdjustStock(_ context.Context, id string, delta int) error {
	return t.state.adjustStock(id, delta)
}

func (t *txView) UpsertProduct(_ context.Context, p models.Product) error {
	return t.state.upsertProduct(p)
}

func (t *txView) DeleteProduct(_ context.Context, id string) error {
	return t.state.deleteProduct(id)
}

func (t *txView) AppendSale(_ context.Context, sale models.SaleRecord) error {
	return t.state.appendSale(sale)
}

func (t *txView) AppendToken(_ context.Context, token models.ExitToken) error {
	return t.state.appendToken(token)
}

func (t *txView) GetSale(_ context.Context, id string) (models.SaleRecord, error) {
	return t.state.getSale(id)
}

func (t *txView) GetToken(_ context.Context, id string) (models.ExitToken, error) {
	return t.state.getToken(id)
}

func (t *txView) UpdateTokenStatus(_ context.Context, id string, from, to models.TokenStatus) error {
	return t.state.updateTokenStatus(id, from, to)
}

func (t *txView) ListSales(context.Context) ([]models.SaleRecord, error) {
	return t.state.listSales(), nil
}

func (t *txView) ListTokens(context.Context) ([]models.ExitToken, error) {
	return t.state.listTokens(), nil
}

type state struct {
	products    map[string]models.Product
	barcodes    map[string]string
	sales       []models.SaleRecord
	saleIndex   map[string]int
	tokens      map[string]models.ExitToken
	tokenOrder  []string
	tokenBySale map[string]string
	reports     []models.DailyReport
}

func newState() *state {
	return &state{
		products:    make(map[string]models.Product),
		barcodes:    make(map[string]string),
		saleIndex:   make(map[string]int),
		tokens:      make(map[string]models.ExitToken),
		tokenBySale: make(map[string]string),
	}
}

// clone copies the mutable indexes. Sale records are immutable so their item slices
// are shared.
func (st *state) clone() *state {
	c := &state{
		products:    make(map[string]models.Product, len(st.products)),
		barcodes:    make(map[string]string, len(st.barcodes)),
		sales:       append([]models.SaleRecord(nil), st.sales...),
		saleIndex:   make(map[string]int, len(st.saleIndex)),
		tokens:      make(map[string]models.ExitToken, len(st.tokens)),
		tokenOrder:  append([]string(nil), st.tokenOrder...),
		tokenBySale: make(map[string]string, len(st.tokenBySale)),
		reports:     append([]models.DailyReport(nil), st.reports...),
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.barcodes {
		c.barcodes[k] = v
	}
	for k, v := range st.saleIndex {
		c.saleIndex[k] = v
	}
	for k, v := range st.tokens {
		c.tokens[k] = v
	}
	for k, v := range st.tokenBySale {
		c.tokenBySale[k] = v
	}
	return c
}

func (st *state) productByBarcode(barcode string) (models.Product, error) {
	id, ok := st.barcodes[barcode]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	return st.products[id], nil
}

func (st *state) productByID(id string) (models.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	return p, nil
}

func (st *state) listProducts() []models.Product {
	out := make([]models.Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (st *state) adjustStock(id string, delta int) error {
	p, ok := st.products[id]
	if !ok {
		return models.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return &models.InsufficientStockError{ProductID: id, Requested: -delta, Available: p.Stock}
	}
	p.Stock += delta
	st.products[id] = p
	return nil
}

func (st *state) upsertProduct(p models.Product) error {
	if owner, ok := st.barcodes[p.Barcode]; ok && owner != p.ID {
		return &models.ValidationError{Field: "barcode", Reason: "already assigned to another product"}
	}
	if existing, ok := st.products[p.ID]; ok && existing.Barcode != p.Barcode {
		delete(st.barcodes, existing.Barcode)
	}
	st.products[p.ID] = p
	st.barcodes[p.Barcode] = p.ID
	return nil
}

func (st *state) deleteProduct(id string) error {
	p, ok := st.products[id]
	if !ok {
		return models.ErrProductNotFound
	}
	delete(st.products, id)
	delete(st.barcodes, p.Barcode)
	return nil
}

func (st *state) appendSale(sale models.SaleRecord) error {
	if _, ok := st.saleIndex[sale.ID]; ok {
		return models.ErrDuplicateID
	}
	st.saleIndex[sale.ID] = len(st.sales)
	st.sales = append(st.sales, sale)
	return nil
}

func (st *state) appendToken(token models.ExitToken) error {
	if _, ok := st.tokens[token.ID]; ok {
		return models.ErrDuplicateID
	}
	if _, ok := st.tokenBySale[token.SaleID]; ok {
		return models.ErrDuplicateID
	}
	st.tokens[token.ID] = token
	st.tokenOrder = append(st.tokenOrder, token.ID)
	st.tokenBySale[token.SaleID] = token.ID
	return nil
}

func (st *state) getSale(id string) (models.SaleRecord, error) {
	idx, ok := st.saleIndex[id]
	if !ok {
		return models.SaleRecord{}, models.ErrSaleNotFound
	}
	return copySale(st.sales[idx]), nil
}

func (st *state) getToken(id string) (models.ExitToken, error) {
	token, ok := st.tokens[id]
	if !ok {
		return models.ExitToken{}, models.ErrTokenNotFound
	}
	return token, nil
}

func (st *state) updateTokenStatus(id string, from, to models.TokenStatus) error {
	token, ok := st.tokens[id]
	if !ok {
		return models.ErrTokenNotFound
	}
	if token.Status != from {
		return models.ErrStatusConflict
	}
	token.Status = to
	st.tokens[id] = token
	return nil
}

func (st *state) listSales() []models.SaleRecord {
	out := make([]models.SaleRecord, 0, len(st.sales))
	for _, sale := range st.sales {
		out = append(out, copySale(sale))
	}
	return out
}

func (st *state) listTokens() []models.ExitToken {
	out := make([]models.ExitToken, 0, len(st.tokenOrder))
	for _, id := range st.tokenOrder {
		out = append(out, st.tokens[id])
	}
	return out
}

func copySale(sale models.SaleRecord) models.SaleRecord {
	sale.Items = append([]models.CartItem(nil), sale.Items...)
	return sale
}
