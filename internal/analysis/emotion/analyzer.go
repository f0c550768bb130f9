// Package emotion classifies a turn's mood from keyword heuristics. The
// labels ride along as metadata on generated replies.
package emotion

import "strings"

// Label is an emotion tag attached to a reply.
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Excited Label = "excited"
	Tender  Label = "tender"
	Comfort Label = "comfort"
)

// Sentiment is the coarse polarity axis.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Balanced Sentiment = "neutral"
)

// Decision is the classification result for one turn.
type Decision struct {
	Emotion   Label
	Sentiment Sentiment
	Score     int
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "wonderful", "thanks", "thank you", "love", "haha", "lol",
		"awesome", "amazing", "delighted", "pleased", "nice", "good news",
	},
	Sad: {
		"sad", "unhappy", "lonely", "miss", "cry", "crying", "depressed", "down", "hurt",
		"grief", "heartbroken", "lost", "hopeless", "tired of",
	},
	Angry: {
		"angry", "furious", "mad", "annoyed", "fed up", "sick of", "rage", "hate",
		"frustrated", "pissed", "outrageous",
	},
	Excited: {
		"excited", "can't wait", "cant wait", "incredible", "unbelievable", "wow", "finally",
		"thrilled", "so cool", "let's go", "lets go",
	},
	Tender: {
		"gentle", "soft", "quiet", "calm", "slowly", "peaceful", "cozy", "warm",
	},
	Comfort: {
		"don't worry", "dont worry", "it's okay", "its okay", "i'm here", "im here",
		"you're safe", "take it easy", "breathe", "i understand", "we'll figure",
	},
}

var negativeLabels = map[Label]bool{
	Sad:   true,
	Angry: true,
}

var positiveLabels = map[Label]bool{
	Happy:   true,
	Excited: true,
	Comfort: true,
	Tender:  true,
}

// Analyze infers the emotion to attach to a reply from the user's utterance
// and the generated text. The reply dominates; when it reads flat, the
// user's emotion is mapped to an appropriate response mood instead.
func Analyze(userUtterance, replyText string) Decision {
	userScore := scoreText(userUtterance)
	replyScore := scoreText(replyText)

	final := replyScore
	if final.Score == 0 && userScore.Score > 0 {
		final = coerceFromUser(userScore)
	}

	if final.Score == 0 {
		return Decision{Emotion: Neutral, Sentiment: Balanced}
	}

	return Decision{Emotion: final.Emotion, Sentiment: sentimentOf(final.Emotion), Score: final.Score}
}

func scoreText(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	best := Decision{Emotion: Neutral}
	for label, keywords := range keywordBuckets {
		score := 0
		for _, word := range keywords {
			score += strings.Count(normalized, word)
		}
		if score > best.Score {
			best = Decision{Emotion: label, Score: score}
		}
	}

	// Exclamation stacking reads as extra energy.
	if best.Emotion == Happy || best.Emotion == Excited {
		best.Score += strings.Count(normalized, "!!")
	}

	return best
}

// coerceFromUser maps the user's emotion to the mood a companion reply
// should carry: distress invites comfort, energy invites matching energy.
func coerceFromUser(user Decision) Decision {
	switch user.Emotion {
	case Sad, Angry:
		return Decision{Emotion: Comfort, Score: user.Score}
	case Excited:
		return Decision{Emotion: Excited, Score: user.Score}
	case Happy:
		return Decision{Emotion: Happy, Score: user.Score}
	default:
		return Decision{Emotion: Tender, Score: user.Score}
	}
}

func sentimentOf(label Label) Sentiment {
	switch {
	case positiveLabels[label]:
		return Positive
	case negativeLabels[label]:
		return Negative
	default:
		return Balanced
	}
}
