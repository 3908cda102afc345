package version

import "github.com/iudanet/draftsync/internal/models"

// MergeStrategy определяет, чьи поля побеждают при пообъектном слиянии.
type MergeStrategy string

const (
	// StrategyLocalPriority поля local перекрывают поля remote
	StrategyLocalPriority MergeStrategy = "local-priority"
	// StrategyRemotePriority поля remote перекрывают поля local
	StrategyRemotePriority MergeStrategy = "remote-priority"
	// StrategyShallowMerge на пересечении побеждает конверт с более поздним
	// timestamp (при равных - remote, как и в LWW)
	StrategyShallowMerge MergeStrategy = "shallow-merge"
)

// MergeFields выполняет пообъектное слияние данных двух конвертов.
// Используется только когда вызывающий код явно выбрал field-level merge;
// путь по умолчанию - ResolveLastWriteWins по целой записи.
func MergeFields(local, remote models.Envelope[map[string]any], strategy MergeStrategy) models.Envelope[map[string]any] {
	merged := make(map[string]any, len(local.Data)+len(remote.Data))

	switch strategy {
	case StrategyLocalPriority:
		for k, v := range remote.Data {
			merged[k] = v
		}
		for k, v := range local.Data {
			merged[k] = v
		}
	case StrategyRemotePriority:
		for k, v := range local.Data {
			merged[k] = v
		}
		for k, v := range remote.Data {
			merged[k] = v
		}
	default: // StrategyShallowMerge
		base, overlay := local, remote
		if local.Timestamp.After(remote.Timestamp) {
			base, overlay = remote, local
		}
		for k, v := range base.Data {
			merged[k] = v
		}
		for k, v := range overlay.Data {
			merged[k] = v
		}
	}

	result := remote
	if local.Timestamp.After(remote.Timestamp) {
		result = local
	}
	result.Data = merged
	result.Version = mergedVersion(local, remote)
	result.ConflictResolved = true
	return result
}
