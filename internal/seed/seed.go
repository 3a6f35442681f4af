// Package seed bootstraps sandbox data so the pipeline can be exercised
// end-to-end right after startup. Nothing here runs in production mode.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
)

const sampleTitle = "The Dragon Who Lost His Roar"

var samplePages = datatypes.JSON(`[
	{"text": "Once upon a time there was a small green dragon.", "image_url": "https://samples.onceuponadrawing.com/dragon/page1.png"},
	{"text": "One morning the dragon opened his mouth and no roar came out.", "image_url": "https://samples.onceuponadrawing.com/dragon/page2.png"},
	{"text": "He searched the whole forest, asking every animal he met.", "image_url": "https://samples.onceuponadrawing.com/dragon/page3.png"},
	{"text": "A tiny mouse had borrowed the roar to scare away a cat.", "image_url": "https://samples.onceuponadrawing.com/dragon/page4.png"},
	{"text": "They shared the roar from that day on, half each.", "image_url": "https://samples.onceuponadrawing.com/dragon/page5.png"}
]`)

// EnsureSampleCreation inserts the demo story if no creations exist yet.
func EnsureSampleCreation(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&orderdomain.Creation{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		creation := orderdomain.Creation{
			ID:            node.Generate(),
			Title:         sampleTitle,
			Author:        "Maya, age 7",
			Dedication:    "For Grandma, who loves dragons",
			CoverImageURL: "https://samples.onceuponadrawing.com/dragon/cover.png",
			Pages:         samplePages,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.WithContext(ctx).Create(&creation).Error
	})
}
