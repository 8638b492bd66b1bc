package contact

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"relay_chat/internal/model"
)

type (
	// MongoBackend stores one document per contact. Documents of several
	// local identities share the collection and are told apart by owner.
	MongoBackend struct {
		collection *mongo.Collection
		owner      string
	}

	contactDoc struct {
		Owner           string         `bson:"owner"`
		Address         string         `bson:"address"`
		Position        int            `bson:"position"`
		Alias           string         `bson:"alias,omitempty"`
		MyAlias         string         `bson:"my_alias,omitempty"`
		PublicKey       []byte         `bson:"public_key,omitempty"`
		Status          int            `bson:"status"`
		MyComponents    []componentDoc `bson:"my_components"`
		OtherComponents []componentDoc `bson:"other_components"`
		Messages        []messageDoc   `bson:"messages"`
	}

	// Big integers are stored as decimal strings.
	componentDoc struct {
		Serial  int64  `bson:"serial"`
		Public  string `bson:"public"`
		Private string `bson:"private,omitempty"`
	}

	messageDoc struct {
		ContentType int          `bson:"content_type"`
		Content     []byte       `bson:"content"`
		Time        time.Time    `bson:"time"`
		Status      int          `bson:"status"`
		Component   componentDoc `bson:"component"`
	}
)

var _ Backend = (*MongoBackend)(nil)

func NewMongoBackend(db *mongo.Database, owner string) *MongoBackend {
	return &MongoBackend{
		collection: db.Collection("contacts"),
		owner:      owner,
	}
}

// EnsureIndexes creates the unique (owner, address) index.
func (b *MongoBackend) EnsureIndexes(ctx context.Context) error {
	_, err := b.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "address", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (b *MongoBackend) Load(ctx context.Context) ([]*model.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cur, err := b.collection.Find(ctx, bson.M{"owner": b.owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []contactDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	contacts := make([]*model.Contact, 0, len(docs))
	for _, d := range docs {
		c, err := d.toModel()
		if err != nil {
			return nil, fmt.Errorf("contact %s: %w", d.Address, err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// Save upserts every contact in one ordered bulk write. Each contact is a
// single document, so it is written atomically with its logs.
func (b *MongoBackend) Save(ctx context.Context, contacts []*model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(contacts))
	for i, c := range contacts {
		doc := fromModel(b.owner, i, c)
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"owner": b.owner, "address": c.Address}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := b.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	return err
}

func fromModel(owner string, position int, c *model.Contact) contactDoc {
	d := contactDoc{
		Owner:           owner,
		Address:         c.Address,
		Position:        position,
		Alias:           c.Alias,
		MyAlias:         c.MyAlias,
		PublicKey:       c.PublicKey,
		Status:          int(c.Status),
		MyComponents:    make([]componentDoc, 0, len(c.MyComponents)),
		OtherComponents: make([]componentDoc, 0, len(c.OtherComponents)),
		Messages:        make([]messageDoc, 0, len(c.Messages)),
	}
	for _, comp := range c.MyComponents {
		d.MyComponents = append(d.MyComponents, componentDoc{
			Serial:  comp.Serial,
			Public:  comp.Public.String(),
			Private: comp.Private.String(),
		})
	}
	for _, comp := range c.OtherComponents {
		d.OtherComponents = append(d.OtherComponents, componentDoc{Serial: comp.Serial, Public: comp.Public.String()})
	}
	for _, m := range c.Messages {
		md := messageDoc{
			ContentType: int(m.ContentType),
			Content:     m.Content,
			Time:        m.Time,
			Status:      int(m.Status),
		}
		if m.Component != nil {
			md.Component = componentDoc{Serial: m.Component.ComponentSerial(), Public: m.Component.PublicValue().String()}
		}
		d.Messages = append(d.Messages, md)
	}
	return d
}

func (d contactDoc) toModel() (*model.Contact, error) {
	c := &model.Contact{
		Address:   d.Address,
		Alias:     d.Alias,
		MyAlias:   d.MyAlias,
		PublicKey: d.PublicKey,
		Status:    model.ContactStatus(d.Status),
	}
	for _, cd := range d.MyComponents {
		public, err := parseInt(cd.Public)
		if err != nil {
			return nil, err
		}
		private, err := parseInt(cd.Private)
		if err != nil {
			return nil, err
		}
		c.MyComponents = append(c.MyComponents, &model.SentComponent{Serial: cd.Serial, Public: public, Private: private})
	}
	for _, cd := range d.OtherComponents {
		public, err := parseInt(cd.Public)
		if err != nil {
			return nil, err
		}
		c.OtherComponents = append(c.OtherComponents, model.NewReceivedComponent(cd.Serial, public))
	}
	sort.SliceStable(c.MyComponents, func(i, j int) bool { return c.MyComponents[i].Serial < c.MyComponents[j].Serial })
	sort.SliceStable(c.OtherComponents, func(i, j int) bool { return c.OtherComponents[i].Serial < c.OtherComponents[j].Serial })

	for _, md := range d.Messages {
		m := &model.MessageData{
			ContentType:    model.ContentType(md.ContentType),
			Content:        md.Content,
			Time:           md.Time,
			Status:         model.MessageStatus(md.Status),
			ContactAddress: d.Address,
		}
		comp, err := md.Component.resolve(c, m.Incoming())
		if err != nil {
			return nil, err
		}
		m.Component = comp
		c.Messages = append(c.Messages, m)
	}
	return c, nil
}

// resolve links a message back to the component in the contact's logs.
// Sent components discarded by a later invitation come back without their
// private exponent.
func (cd componentDoc) resolve(c *model.Contact, incoming bool) (model.SecretComponent, error) {
	if cd.Public == "" {
		return nil, nil
	}
	if incoming {
		if comp := c.FindReceived(cd.Serial); comp != nil && comp.Public.String() == cd.Public {
			return comp, nil
		}
	} else if comp := c.FindSent(cd.Serial); comp != nil && comp.Public.String() == cd.Public {
		return comp, nil
	}
	public, err := parseInt(cd.Public)
	if err != nil {
		return nil, err
	}
	if incoming {
		return model.NewReceivedComponent(cd.Serial, public), nil
	}
	return &model.SentComponent{Serial: cd.Serial, Public: public}, nil
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
