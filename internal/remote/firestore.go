package remote

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/shopstate/internal/model"
)

// DefaultFirestoreCollection holds one document per (identity, product).
const DefaultFirestoreCollection = "favorites"

// Firestore stores favorites as documents keyed "<identity>__<productId>".
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreClient creates a client for projectID. An empty
// credentialsFile uses Application Default Credentials, and
// FIRESTORE_EMULATOR_HOST is honoured by the client library.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// NewFirestore uses collection on client. An empty collection means
// DefaultFirestoreCollection.
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &Firestore{client: client, collection: collection}
}

// Close closes the client.
func (r *Firestore) Close() error {
	return r.client.Close()
}

type favoriteDoc struct {
	UserID    string    `firestore:"user_id"`
	ProductID string    `firestore:"product_id"`
	CreatedAt time.Time `firestore:"created_at"`
}

// firestoreDocID builds the document id. Path-escaping keeps "/" in ids from
// being read as a subcollection separator.
func firestoreDocID(id model.Identity, productID string) string {
	return url.PathEscape(string(id)) + "__" + url.PathEscape(productID)
}

func (r *Firestore) col() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *Firestore) List(ctx context.Context, id model.Identity) ([]model.FavoriteEntry, error) {
	if !id.Present() {
		return nil, fail(OpList, id, ErrNoIdentity)
	}

	it := r.col().Where("user_id", "==", string(id)).Documents(ctx)
	defer it.Stop()

	var docs []favoriteDoc
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fail(OpList, id, err)
		}
		var d favoriteDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fail(OpList, id, fmt.Errorf("decode %s: %w", snap.Ref.ID, err))
		}
		docs = append(docs, d)
	}

	// Sorted client-side to avoid requiring a composite index.
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ProductID < docs[j].ProductID
	})

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ProductID)
	}
	return toEntries(ids), nil
}

func (r *Firestore) InsertMany(ctx context.Context, id model.Identity, entries []model.FavoriteEntry) (InsertResult, error) {
	return insertEach(ctx, id, entries, func(ctx context.Context, productID string) (bool, error) {
		_, err := r.col().Doc(firestoreDocID(id, productID)).Create(ctx, map[string]any{
			"user_id":    string(id),
			"product_id": productID,
			"created_at": firestore.ServerTimestamp,
		})
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
}

func (r *Firestore) Delete(ctx context.Context, id model.Identity, productID string) error {
	if !id.Present() {
		return fail(OpDelete, id, ErrNoIdentity)
	}
	_, err := r.col().Doc(firestoreDocID(id, model.NormalizeKey(productID))).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fail(OpDelete, id, err)
	}
	return nil
}
