package sealevel

// SysvarCache holds the sysvar values visible to programs for one
// transaction. The host fills it before execution.
type SysvarCache struct {
	clock *SysvarClock
	rent  *SysvarRent
}

func NewSysvarCache(clock SysvarClock, rent SysvarRent) SysvarCache {
	return SysvarCache{clock: &clock, rent: &rent}
}

func (sysvarCache *SysvarCache) GetClock() (*SysvarClock, error) {
	if sysvarCache.clock == nil {
		return nil, InstrErrUnsupportedSysvar
	}
	return sysvarCache.clock, nil
}

func (sysvarCache *SysvarCache) GetRent() (*SysvarRent, error) {
	if sysvarCache.rent == nil {
		return nil, InstrErrUnsupportedSysvar
	}
	return sysvarCache.rent, nil
}
