package storage

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

const (
	orderDatabase   = "strategy"
	orderCollection = "order"
)

// 订单文档字段
const (
	orderPlatform   = "p"
	orderAccount    = "a"
	orderStrategy   = "s"
	orderSymbol     = "S"
	orderNo         = "n"
	orderAction     = "A"
	orderType       = "t"
	orderStatus     = "st"
	orderPrice      = "pr"
	orderAvgPrice   = "ap"
	orderQuantity   = "q"
	orderRemain     = "r"
	orderTradeType  = "T"
	orderCreateTime = "ct"
	orderUpdateTime = "ut"
)

// OrderStore persists orders keyed by (platform, order no). After creation only the
// status and remaining quantity are ever written; transition legality is not checked.
type OrderStore struct {
	partition port.Partition
}

func NewOrderStore(ctx context.Context, store port.DocumentStore) (*OrderStore, error) {
	p, err := store.Partition(ctx, orderDatabase, orderCollection)
	if err != nil {
		return nil, err
	}
	return &OrderStore{partition: p}, nil
}

// CreateOrder inserts a full copy of o and returns the document id.
func (s *OrderStore) CreateOrder(ctx context.Context, o model.Order) (string, error) {
	doc := bson.M{
		orderPlatform:   o.Platform,
		orderAccount:    o.Account,
		orderStrategy:   o.Strategy,
		orderSymbol:     o.Symbol,
		orderNo:         o.OrderNo,
		orderAction:     o.Action,
		orderType:       o.OrderType,
		orderStatus:     o.Status,
		orderTradeType:  o.TradeType,
		orderCreateTime: o.CreateTime,
		orderUpdateTime: o.UpdateTime,
	}
	amounts := map[string]decimal.Decimal{
		orderPrice:    o.Price,
		orderAvgPrice: o.AvgPrice,
		orderQuantity: o.Quantity,
		orderRemain:   o.Remain,
	}
	for key, v := range amounts {
		d, err := toDecimal128(v)
		if err != nil {
			return "", err
		}
		doc[key] = d
	}
	return s.partition.Insert(ctx, doc)
}

// FindByOrderNumber returns the order with the exact natural key.
func (s *OrderStore) FindByOrderNumber(ctx context.Context, platform, no string) (model.Order, bool, error) {
	return s.findOne(ctx, bson.M{orderPlatform: platform, orderNo: no}, nil)
}

// ApplyStatusUpdate writes o.Status and o.Remain to the stored order. Every other field of
// o is ignored even if it differs from what was stored.
func (s *OrderStore) ApplyStatusUpdate(ctx context.Context, o model.Order) (int64, error) {
	remain, err := toDecimal128(o.Remain)
	if err != nil {
		return 0, err
	}
	filter := bson.M{orderPlatform: o.Platform, orderNo: o.OrderNo}
	set := bson.M{orderStatus: o.Status, orderRemain: remain}
	return s.partition.Update(ctx, filter, set, nil, false)
}

// GetLatestOrder returns the most recently updated order of a symbol.
func (s *OrderStore) GetLatestOrder(ctx context.Context, platform, symbol string) (model.Order, bool, error) {
	return s.findOne(ctx,
		bson.M{orderPlatform: platform, orderSymbol: symbol},
		bson.D{{Key: orderUpdateTime, Value: -1}, {Key: port.FieldID, Value: -1}},
	)
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M, sort bson.D) (model.Order, bool, error) {
	doc, found, err := s.partition.FindOne(ctx, filter, port.FindOptions{Sort: sort})
	if err != nil || !found {
		return model.Order{}, false, err
	}
	o, err := decodeOrder(doc)
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func decodeOrder(doc bson.M) (model.Order, error) {
	o := model.Order{
		ID:         idField(doc),
		Platform:   stringField(doc, orderPlatform),
		Account:    stringField(doc, orderAccount),
		Strategy:   stringField(doc, orderStrategy),
		Symbol:     stringField(doc, orderSymbol),
		OrderNo:    stringField(doc, orderNo),
		Action:     stringField(doc, orderAction),
		OrderType:  stringField(doc, orderType),
		Status:     stringField(doc, orderStatus),
		TradeType:  intField(doc, orderTradeType),
		CreateTime: int64Field(doc, orderCreateTime),
		UpdateTime: int64Field(doc, orderUpdateTime),
	}
	var err error
	if o.Price, err = decimalField(doc, orderPrice); err != nil {
		return o, err
	}
	if o.AvgPrice, err = decimalField(doc, orderAvgPrice); err != nil {
		return o, err
	}
	if o.Quantity, err = decimalField(doc, orderQuantity); err != nil {
		return o, err
	}
	if o.Remain, err = decimalField(doc, orderRemain); err != nil {
		return o, err
	}
	return o, nil
}

var _ port.OrderRepository = (*OrderStore)(nil)
