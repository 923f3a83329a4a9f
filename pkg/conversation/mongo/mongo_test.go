package mongo_test

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
	"github.com/xeleb-ai/xeleb/pkg/conversation/mongo"
	"github.com/xeleb-ai/xeleb/pkg/logger"
)

var _ = Describe("Mongo conversation store", func() {
	key := conversation.ThreadKey{UserID: "u1", ThreadID: "t1", AgentName: "MISS CHINA AI"}

	It("filters on the full thread key", func() {
		Expect(mongo.KeyFilter(key).Map()).To(Equal(bson.M{
			"user_id":    "u1",
			"thread_id":  "t1",
			"agent_name": "MISS CHINA AI",
		}))
	})

	It("clears the oldest conversation of a thread across agents", func() {
		Expect(mongo.ThreadFilter("u1", "t1").Map()).To(Equal(bson.M{
			"user_id":   "u1",
			"thread_id": "t1",
		}))
		Expect(mongo.OldestFirst).To(Equal(bson.D{{Key: "created_at", Value: 1}}))
	})

	It("sets identity fields only on insert and pushes every message", func() {
		now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		msgs := []conversation.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "yo"}}

		update := mongo.AppendUpdate(key, msgs, now).Map()
		Expect(update).To(HaveKey("$setOnInsert"))
		Expect(update).To(HaveKey("$push"))

		onInsert := update["$setOnInsert"].(bson.D).Map()
		Expect(onInsert).To(HaveKeyWithValue("created_at", now))
		Expect(onInsert).To(HaveKeyWithValue("agent_name", "MISS CHINA AI"))

		push := update["$push"].(bson.D).Map()
		each := push["messages"].(bson.D).Map()
		Expect(each["$each"]).To(Equal(msgs))
	})

	It("requires connection settings", func() {
		_, err := mongo.NewStore(context.Background(), mongo.Config{URI: "mongodb://localhost:27017"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("required")))
	})
})
