package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"passport_studio/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockModel is a mock implementation of Model
type MockModel struct {
	mock.Mock
}

func (m *MockModel) EditImage(ctx context.Context, src Blob, instruction, aspectRatio string) (*Reply, error) {
	args := m.Called(ctx, src, instruction, aspectRatio)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Reply), args.Error(1)
}

func (m *MockModel) AnalyzeImage(ctx context.Context, src Blob, instruction string) (string, error) {
	args := m.Called(ctx, src, instruction)
	return args.String(0), args.Error(1)
}

func (m *MockModel) Chat(ctx context.Context, system string, history []Turn, message string) (string, error) {
	args := m.Called(ctx, system, history, message)
	return args.String(0), args.Error(1)
}

var testSource = Blob{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}

func defaultSettings(t *testing.T) domain.PhotoSettings {
	t.Helper()
	s, err := domain.SettingsInput{}.Parse()
	require.NoError(t, err)
	return s
}

func TestGeneratePhoto_ReturnsImageEvenWithText(t *testing.T) {
	model := new(MockModel)
	img := Blob{MIMEType: "image/png", Data: []byte("png")}
	model.On("EditImage", mock.Anything, testSource, mock.Anything, PortraitAspect).
		Return(&Reply{Images: []Blob{img}, Text: "here you go"}, nil)

	got, err := NewClient(model).GeneratePhoto(context.Background(), testSource, defaultSettings(t))

	require.NoError(t, err)
	assert.Equal(t, img, got)
	model.AssertExpectations(t)
}

func TestGeneratePhoto_TextOnlyIsRefusal(t *testing.T) {
	model := new(MockModel)
	long := strings.Repeat("ন", 250)
	model.On("EditImage", mock.Anything, testSource, mock.Anything, PortraitAspect).
		Return(&Reply{Text: long}, nil)

	_, err := NewClient(model).GeneratePhoto(context.Background(), testSource, defaultSettings(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationRefused)
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.LessOrEqual(t, len([]rune(refusal.Excerpt)), 200)
	assert.True(t, strings.HasSuffix(refusal.Excerpt, "..."))
}

func TestGeneratePhoto_ShortRefusalKeptWhole(t *testing.T) {
	model := new(MockModel)
	model.On("EditImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&Reply{Text: "I can't edit this photo."}, nil)

	_, err := NewClient(model).GeneratePhoto(context.Background(), testSource, defaultSettings(t))

	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.Equal(t, "I can't edit this photo.", refusal.Excerpt)
}

func TestGeneratePhoto_EmptyReply(t *testing.T) {
	model := new(MockModel)
	model.On("EditImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&Reply{}, nil)

	_, err := NewClient(model).GeneratePhoto(context.Background(), testSource, defaultSettings(t))

	assert.ErrorIs(t, err, ErrGenerationEmpty)
	assert.NotErrorIs(t, err, ErrGenerationRefused)
}

func TestGeneratePhoto_TransportErrorPropagates(t *testing.T) {
	model := new(MockModel)
	boom := errors.New("connection reset")
	model.On("EditImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, boom)

	_, err := NewClient(model).GeneratePhoto(context.Background(), testSource, defaultSettings(t))

	assert.ErrorIs(t, err, boom)
	model.AssertNumberOfCalls(t, "EditImage", 1)
}

func TestAnalyzeFace(t *testing.T) {
	t.Run("parses box", func(t *testing.T) {
		model := new(MockModel)
		model.On("AnalyzeImage", mock.Anything, testSource, mock.Anything).
			Return(`{"rollAngle": -4.5, "faceBox": [100, 300, 600, 700]}`, nil)

		got := NewClient(model).AnalyzeFace(context.Background(), testSource)

		assert.Equal(t, -4.5, got.RollAngle)
		require.NotNil(t, got.FaceBox)
		assert.Equal(t, FaceBox{YMin: 100, XMin: 300, YMax: 600, XMax: 700}, *got.FaceBox)
	})

	t.Run("model error degrades", func(t *testing.T) {
		model := new(MockModel)
		model.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("quota"))

		got := NewClient(model).AnalyzeFace(context.Background(), testSource)

		assert.Equal(t, FaceAnalysis{}, got)
	})

	t.Run("garbage degrades", func(t *testing.T) {
		model := new(MockModel)
		model.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything).
			Return("not json", nil)

		got := NewClient(model).AnalyzeFace(context.Background(), testSource)

		assert.Zero(t, got.RollAngle)
		assert.Nil(t, got.FaceBox)
	})

	t.Run("inverted box dropped", func(t *testing.T) {
		model := new(MockModel)
		model.On("AnalyzeImage", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"rollAngle": 2, "faceBox": [600, 300, 100, 700]}`, nil)

		got := NewClient(model).AnalyzeFace(context.Background(), testSource)

		assert.Equal(t, 2.0, got.RollAngle)
		assert.Nil(t, got.FaceBox)
	})
}

func TestParseDataURL(t *testing.T) {
	b, err := ParseDataURL("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", b.MIMEType)
	assert.Equal(t, []byte("hello"), b.Data)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", b.DataURL())

	b, err = ParseDataURL("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", b.MIMEType)

	_, err = ParseDataURL("data:image/png,plain")
	assert.ErrorIs(t, err, ErrBadImage)

	_, err = ParseDataURL("")
	assert.ErrorIs(t, err, ErrBadImage)
}

func TestChatContents_RolesFollowSpeaker(t *testing.T) {
	history := []Turn{
		{FromUser: true, Text: "how much is a photo?"},
		{FromUser: false, Text: "20 credits"},
	}

	contents := chatContents(history, "thanks")

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "thanks", contents[2].Parts[0].Text)
}
