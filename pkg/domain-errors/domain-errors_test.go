package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Equal("session not found", (&Error{Code: CodeNotFound, Message: "session not found"}).Error())
	s.Equal("busy", (&Error{Code: CodeBusy}).Error())
}

func (s *DomainErrorsSuite) TestMatchingByCode() {
	s.Run("same code different message", func() {
		s.True(errors.Is(New(CodeBusy, "signer busy"), &Error{Code: CodeBusy}))
	})

	s.Run("different code", func() {
		s.False(errors.Is(New(CodeBusy, "signer busy"), &Error{Code: CodeTimeout}))
	})

	s.Run("plain errors never match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not_found")))
	})

	s.Run("found through chain", func() {
		inner := &Error{Code: CodeInvalidPayload, Message: "bad event wrapper"}
		outer := &Error{Code: CodeInternal, Message: "fetch failed", Err: inner}
		s.True(errors.Is(outer, &Error{Code: CodeInvalidPayload}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the original domain code", func() {
		wrapped := Wrap(New(CodeNotFound, "event group not found"), CodeInternal, "delete event group")
		s.True(HasCode(wrapped, CodeNotFound))
		s.Equal("delete event group", wrapped.Error())
	})

	s.Run("applies the code to foreign errors", func() {
		root := errors.New("disk full")
		wrapped := Wrap(root, CodeInternal, "store event group")
		s.True(HasCode(wrapped, CodeInternal))
		s.ErrorIs(wrapped, root)
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("plain"), CodeNotFound))
	s.True(HasCode(New(CodeUnavailable, "no internet"), CodeUnavailable))
}
