package test

import (
	"context"
	"time"
)

func (s *WorkfitTestSuite) TestRegistry() {
	type foo struct {
		A string
		B string
	}
	ctx := context.Background()
	accessor := s.Registry.Accessor("foo")

	var read foo
	timestamp, err := accessor.Read(ctx, "missing", &read)
	s.Require().NoError(err)
	s.True(timestamp.IsZero())

	before := time.Now().Add(-time.Minute)
	s.Require().NoError(accessor.Write(ctx, "key", foo{A: "Hello", B: "World"}))
	timestamp, err = accessor.Read(ctx, "key", &read)
	s.Require().NoError(err)
	s.True(timestamp.After(before))
	s.Equal(foo{A: "Hello", B: "World"}, read)

	s.Require().NoError(accessor.Delete(ctx, "key"))
	timestamp, err = accessor.Read(ctx, "key", &read)
	s.Require().NoError(err)
	s.True(timestamp.IsZero())
}

func (s *WorkfitTestSuite) TestRegistryClearKeepsOtherPrefixes() {
	ctx := context.Background()
	cardio := s.Registry.Accessor("cardio_clear")
	daily := s.Registry.Accessor("daily_clear")
	s.Require().NoError(cardio.Write(ctx, "a", 1))
	s.Require().NoError(daily.Write(ctx, "a", 2))

	s.Require().NoError(cardio.Clear(ctx))

	var value int
	timestamp, err := cardio.Read(ctx, "a", &value)
	s.Require().NoError(err)
	s.True(timestamp.IsZero())
	timestamp, err = daily.Read(ctx, "a", &value)
	s.Require().NoError(err)
	s.False(timestamp.IsZero())
	s.Equal(2, value)

	s.Error(s.Registry.Accessor("").Clear(ctx))
}
