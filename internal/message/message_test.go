package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SLAM-Lab/sana-fe/internal/message"
)

func TestSeqDefaultsToZero(t *testing.T) {
	m := &message.Message{}
	assert.Equal(t, uint64(0), m.Seq())
}

func TestSetSeqOverridesSeq(t *testing.T) {
	m := &message.Message{}
	m.SetSeq(7)
	assert.Equal(t, uint64(7), m.Seq())
}
