package app

// Score computes the score and token deltas for a single answer event.
// Incorrect answers (including the no-answer sentinel, which the caller has
// already marked incorrect) earn nothing. Correct answers earn a 1000-point
// base plus a speed bonus that caps at 100 points for an instant answer and
// falls to zero at 1000ms, plus the per-question token reward.
//
// The function is pure: elapsed time is an input, never measured here.
func Score(correct bool, timeToAnswerMs int64, rewardPerQuestion int64) (scoreDelta int, tokenDelta int64) {
	if !correct {
		return 0, 0
	}
	bonus := int64(1000) - timeToAnswerMs
	if bonus < 0 {
		bonus = 0
	}
	return 1000 + int(bonus/10), rewardPerQuestion
}
