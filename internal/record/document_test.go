package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

func TestDocument_MarshalUnmarshal(t *testing.T) {
	seq := NewSequencer()
	doc := seq.New(map[string]keys.Value{
		"word":  keys.String("aardvark"),
		"count": keys.Int(7),
		"score": keys.Float(0.5),
	})

	got, err := Unmarshal(Marshal(doc))
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
	require.Equal(t, doc.CreationTime, got.CreationTime)
	require.Len(t, got.Fields, 3)
	require.Equal(t, "aardvark", got.Word())
	require.True(t, keys.Int(7).Equal(got.Fields["count"]))

	_, err = Unmarshal([]byte{0x42})
	require.ErrorIs(t, err, keys.ErrValidation)
}

func TestDocument_Field(t *testing.T) {
	doc := &Document{ID: "id-1", CreationTime: 10, Fields: map[string]keys.Value{"word": keys.String("w")}}

	key, err := keys.DefaultFields().KeyOf(doc)
	require.NoError(t, err)
	require.True(t, key.Equal(keys.IndexKey{keys.Int(10), keys.String("id-1")}))

	_, err = keys.FieldList{{Name: "missing", Kind: keys.KindString}}.KeyOf(doc)
	require.ErrorIs(t, err, keys.ErrValidation)
}

func TestSequencer_StrictlyIncreasing(t *testing.T) {
	seq := NewSequencer()
	fixed := time.Unix(100, 0)
	seq.now = func() time.Time { return fixed }

	a := seq.Next()
	b := seq.Next()
	require.Less(t, a, b)

	seq.Observe(b + 1000)
	require.Greater(t, seq.Next(), b+1000)
}
