package errcodes

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf_SurvivesWrapping(t *testing.T) {
	err := errors.WithStack(ComicIO("/tmp/a.cbz", io.ErrUnexpectedEOF))

	assert.True(t, IsComicIO(err))
	assert.False(t, IsArchiveIO(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCodeOf_OutermostCodeWins(t *testing.T) {
	err := ArchiveIO("/tmp/a.cbz", SecurityViolation("../evil.jpg", "/tmp/x"))

	assert.Equal(t, CodeArchiveIO, CodeOf(err))
	assert.True(t, IsArchiveIO(err))
}

func TestIndexOutOfRange_NamesBound(t *testing.T) {
	err := IndexOutOfRange(12, 10)

	assert.True(t, IsIndexOutOfRange(err))
	assert.Contains(t, err.Error(), "[0, 10)")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestValidationError(t *testing.T) {
	err := errors.WithStack(ValidationError(`"cover_type" must be one of the following: "portrait"`))

	assert.True(t, IsValidation(err))
	assert.Equal(t, `"cover_type" must be one of the following: "portrait"`, err.Error())
}
