package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/liftcall/internal/config"
	"github.com/okian/liftcall/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.BaseURL, convey.ShouldEqual, "http://localhost:8000")
			convey.So(cfg.StatusAddr, convey.ShouldEqual, ":9180")
			convey.So(cfg.RequestTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.PollInterval(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.DeliveryMaxAttempts, convey.ShouldEqual, 5)

			minWait, maxWait := cfg.DeliveryBackoff()
			convey.So(minWait, convey.ShouldEqual, 250*time.Millisecond)
			convey.So(maxWait, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("A relative base url should be rejected", func() {
			cfg.BaseURL = "localhost:8000"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A zero poll interval should be rejected", func() {
			cfg.PollIntervalMS = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "poll_interval_ms")
		})

		convey.Convey("A zero request timeout should be rejected", func() {
			cfg.RequestTimeoutMS = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A fleet with duplicate ids should be rejected", func() {
			cfg.Fleet = []model.FleetEntry{
				{ID: "1", FloorsServiced: []int{1}},
				{ID: "1", FloorsServiced: []int{2}},
			}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Zero delivery attempts should be allowed", func() {
			cfg.DeliveryMaxAttempts = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
