package imagegen

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Default model names
const (
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTextModel  = "gemini-2.5-flash"
)

// GenAIModel implements Model on the Gemini API
type GenAIModel struct {
	client     *genai.Client
	imageModel string
	textModel  string
}

// NewGenAIModel creates a Gemini API client authenticated with apiKey
func NewGenAIModel(ctx context.Context, apiKey, imageModel, textModel string) (*GenAIModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	if textModel == "" {
		textModel = DefaultTextModel
	}
	return &GenAIModel{client: client, imageModel: imageModel, textModel: textModel}, nil
}

func photoContent(src Blob, instruction string) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(src.Data, src.MIMEType),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
}

// firstCandidate splits the first candidate into inline images and text
func firstCandidate(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			reply.Images = append(reply.Images, Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data})
			continue
		}
		text.WriteString(part.Text)
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply
}

func (m *GenAIModel) EditImage(ctx context.Context, src Blob, instruction, aspectRatio string) (*Reply, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if aspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: aspectRatio}
	}
	resp, err := m.client.Models.GenerateContent(ctx, m.imageModel, photoContent(src, instruction), cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return firstCandidate(resp), nil
}

var faceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"rollAngle": {
			Type:        genai.TypeNumber,
			Description: "The estimated head tilt roll angle in degrees.",
		},
		"faceBox": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeNumber},
			Description: "Face bounding box coordinates [ymin, xmin, ymax, xmax] on a 0-1000 scale.",
		},
	},
	Required: []string{"rollAngle", "faceBox"},
}

func (m *GenAIModel) AnalyzeImage(ctx context.Context, src Blob, instruction string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.textModel, photoContent(src, instruction), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   faceSchema,
	})
	if err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	return firstCandidate(resp).Text, nil
}

func (m *GenAIModel) Chat(ctx context.Context, system string, history []Turn, message string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.textModel, chatContents(history, message), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return firstCandidate(resp).Text, nil
}

// chatContents lays out the conversation oldest first, ending with the new user message
func chatContents(history []Turn, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleModel
		if t.FromUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}
