package database

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// Helpers for running repositories against the driver's mock deployment.
// Every command the repository sends consumes one queued response.

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func updateResponse(matched, modified int32) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: matched},
		bson.E{Key: "nModified", Value: modified},
	)
}

func upsertResponse(id primitive.ObjectID) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: int32(1)},
		bson.E{Key: "nModified", Value: int32(0)},
		bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: int32(0)}, {Key: "_id", Value: id}}}},
	)
}

func duplicateKeyResponse() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 11000, Message: "E11000 duplicate key error"})
}

func cursorResponse(mt *mtest.T, docs ...bson.D) bson.D {
	ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

// sentCommand returns the next command the client sent.
func sentCommand(mt *mtest.T) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	if evt == nil {
		mt.Fatal("no command was sent")
	}
	return evt.Command
}
